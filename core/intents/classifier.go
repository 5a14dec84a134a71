// Package intents maps a spoken utterance to an intent name.
package intents

import (
	"context"
	"errors"
)

var ErrNoIntent = errors.New("no intent recognized")

type Classifier interface {
	Classify(ctx context.Context, utterance string) (string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, utterance string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, utterance string) (string, error) {
	return f(ctx, utterance)
}
