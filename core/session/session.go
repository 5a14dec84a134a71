// Package session holds the per-conversation record of which intent is being
// filled, how far along it is and what has been answered so far.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/voiceforms/core/catalog"
)

var (
	ErrNoActiveIntent = errors.New("no active intent")
	ErrSequenceDone   = errors.New("all questions answered")
)

// Session is an empty record until Begin. Invariants: QuestionIndex is only
// meaningful while an intent is active and stays within
// [0, len(intent.Questions)], Answers only holds keys of the active intent.
type Session struct {
	ID            string            `json:"id"`
	ActiveIntent  string            `json:"active_intent,omitempty"`
	QuestionIndex int               `json:"question_index"`
	Answers       map[string]string `json:"answers"`

	questions []catalog.Question
}

func New() *Session {
	return &Session{ID: uuid.NewString(), Answers: map[string]string{}}
}

// Begin seeds the session for intent, starting at the first question.
func (s *Session) Begin(intent catalog.Intent) {
	s.ID = uuid.NewString()
	s.ActiveIntent = intent.Name
	s.QuestionIndex = 0
	s.Answers = make(map[string]string, len(intent.Questions))
	s.questions = intent.Questions
}

// Reset drops the active intent and every answer.
func (s *Session) Reset() {
	s.ActiveIntent = ""
	s.QuestionIndex = 0
	s.Answers = map[string]string{}
	s.questions = nil
}

func (s *Session) Active() bool { return s.ActiveIntent != "" }

// Current returns the question at the cursor.
func (s *Session) Current() (catalog.Question, error) {
	if !s.Active() {
		return catalog.Question{}, ErrNoActiveIntent
	}
	if s.Done() {
		return catalog.Question{}, ErrSequenceDone
	}
	return s.questions[s.QuestionIndex], nil
}

// Done reports whether every question of the active intent has an answer
// slot filled.
func (s *Session) Done() bool {
	return s.Active() && s.QuestionIndex >= len(s.questions)
}

// Record stores answer for the current question and moves the cursor on.
func (s *Session) Record(answer string) (catalog.Question, error) {
	question, err := s.Current()
	if err != nil {
		return catalog.Question{}, fmt.Errorf("failed to record answer: %w", err)
	}
	s.Answers[question.Key] = answer
	s.QuestionIndex++
	return question, nil
}

// Snapshot returns a deep copy of the exported fields, safe to hand to
// observers.
func (s *Session) Snapshot() Session {
	var snapshot Session
	_ = copier.CopyWithOption(&snapshot, s, copier.Option{DeepCopy: true})
	if snapshot.Answers == nil {
		snapshot.Answers = map[string]string{}
	}
	return snapshot
}
