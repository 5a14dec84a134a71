// Package catalog holds the static intent configuration: the ordered
// questions of every intent, the action each intent triggers and the message
// spoken when that action succeeds.
//
// A Catalog is validated once when it is built and never mutated afterwards.
// Every accessor hands out copies so callers cannot reach its internals.
package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/jinzhu/copier"
)

var (
	ErrInvalidCatalog = errors.New("invalid intent catalog")
	ErrUnknownIntent  = errors.New("unknown intent")
)

const defaultUnauthorizedMessage = "You must be a registered user and logged in before you can continue"

type Question struct {
	Key       string `yaml:"key" json:"key" jsonschema:"required"`
	Prompt    string `yaml:"prompt" json:"prompt" jsonschema:"required"`
	MultiLine bool   `yaml:"multi_line,omitempty" json:"multi_line,omitempty"`
	// Prefill names a stored value that answers the question without asking.
	Prefill string `yaml:"prefill,omitempty" json:"prefill,omitempty"`
}

// ListField collapses every question whose key starts with KeyPrefix into a
// single list valued payload field.
type ListField struct {
	Field     string `yaml:"field" json:"field" jsonschema:"required"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" jsonschema:"required"`
}

type Intent struct {
	Name                string      `yaml:"name" json:"name" jsonschema:"required"`
	Questions           []Question  `yaml:"questions,omitempty" json:"questions,omitempty"`
	ActionID            string      `yaml:"action_id" json:"action_id" jsonschema:"required"`
	Endpoint            string      `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Method              string      `yaml:"method,omitempty" json:"method,omitempty" jsonschema:"enum=POST,enum=PUT,enum=PATCH,enum=DELETE"`
	NextIntent          string      `yaml:"next_intent,omitempty" json:"next_intent,omitempty"`
	RequiresAuth        bool        `yaml:"requires_auth,omitempty" json:"requires_auth,omitempty"`
	UnauthorizedMessage string      `yaml:"unauthorized_message,omitempty" json:"unauthorized_message,omitempty"`
	ListFields          []ListField `yaml:"list_fields,omitempty" json:"list_fields,omitempty"`
}

// IsPureAction reports whether the intent runs its action without asking
// anything.
func (i Intent) IsPureAction() bool { return len(i.Questions) == 0 }

// ListFieldFor returns the list field a question key is merged into.
func (i Intent) ListFieldFor(key string) (ListField, bool) {
	for _, field := range i.ListFields {
		if strings.HasPrefix(key, field.KeyPrefix) {
			return field, true
		}
	}
	return ListField{}, false
}

// Document is the on-disk form of a catalog.
type Document struct {
	Intents   []Intent          `yaml:"intents" json:"intents" jsonschema:"required"`
	Responses map[string]string `yaml:"responses" json:"responses" jsonschema:"required"`
}

type Catalog struct {
	intents   []Intent
	index     map[string]int
	responses map[string]string
}

// New normalizes and validates doc. The returned catalog shares no memory
// with doc.
func New(doc Document) (*Catalog, error) {
	var owned Document
	if err := copier.CopyWithOption(&owned, &doc, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy catalog: %w", err)
	}

	for i := range owned.Intents {
		normalize(&owned.Intents[i])
	}
	if err := validate(owned); err != nil {
		return nil, err
	}

	c := &Catalog{
		intents:   owned.Intents,
		index:     make(map[string]int, len(owned.Intents)),
		responses: owned.Responses,
	}
	for i, intent := range owned.Intents {
		c.index[intent.Name] = i
	}
	return c, nil
}

func normalize(intent *Intent) {
	intent.Name = strings.TrimSpace(intent.Name)
	intent.Method = strings.ToUpper(strings.TrimSpace(intent.Method))
	if intent.Method == "" {
		intent.Method = http.MethodPost
	}
	if intent.RequiresAuth && intent.UnauthorizedMessage == "" {
		intent.UnauthorizedMessage = defaultUnauthorizedMessage
	}
}

func validate(doc Document) error {
	var errs []error
	names := make(map[string]struct{}, len(doc.Intents))
	for _, intent := range doc.Intents {
		if intent.Name == "" {
			errs = append(errs, fmt.Errorf("intent without a name"))
			continue
		}
		if _, ok := names[intent.Name]; ok {
			errs = append(errs, fmt.Errorf("intent %q: defined more than once", intent.Name))
		}
		names[intent.Name] = struct{}{}
	}

	for _, intent := range doc.Intents {
		if intent.Name == "" {
			continue
		}
		errs = append(errs, validateIntent(intent, names, doc.Responses)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

func validateIntent(intent Intent, names map[string]struct{}, responses map[string]string) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("intent %q: "+format, append([]any{intent.Name}, args...)...))
	}

	if intent.ActionID == "" {
		fail("missing action id")
	} else if _, ok := responses[intent.ActionID]; !ok {
		fail("no response message for action %q", intent.ActionID)
	}

	if !slices.Contains([]string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}, intent.Method) {
		fail("unsupported method %q", intent.Method)
	}

	if intent.NextIntent != "" {
		if _, ok := names[intent.NextIntent]; !ok {
			fail("next intent %q does not exist", intent.NextIntent)
		}
	}

	if intent.IsPureAction() && intent.Endpoint != "" {
		fail("an endpoint action needs at least one question")
	}

	keys := make(map[string]struct{}, len(intent.Questions))
	for i, question := range intent.Questions {
		if question.Key == "" {
			fail("question %d has no key", i)
			continue
		}
		if _, ok := keys[question.Key]; ok {
			fail("duplicate question key %q", question.Key)
		}
		keys[question.Key] = struct{}{}
		if question.Prompt == "" {
			fail("question %q has no prompt", question.Key)
		}
	}

	for _, field := range intent.ListFields {
		if field.Field == "" || field.KeyPrefix == "" {
			fail("list field needs both a field and a key prefix")
			continue
		}
		if _, ok := keys[field.Field]; ok {
			fail("list field %q collides with a question key", field.Field)
		}
	}

	return errs
}

// Intent returns a copy of the named intent.
func (c *Catalog) Intent(name string) (Intent, error) {
	i, ok := c.index[name]
	if !ok {
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownIntent, name)
	}
	return copyIntent(c.intents[i]), nil
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Names lists intent names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.intents))
	for _, intent := range c.intents {
		names = append(names, intent.Name)
	}
	return names
}

// Response returns the success message for an action.
func (c *Catalog) Response(actionID string) (string, bool) {
	message, ok := c.responses[actionID]
	return message, ok
}

// Document returns a copy of the normalized catalog contents.
func (c *Catalog) Document() Document {
	doc := Document{Intents: make([]Intent, 0, len(c.intents)), Responses: make(map[string]string, len(c.responses))}
	for _, intent := range c.intents {
		doc.Intents = append(doc.Intents, copyIntent(intent))
	}
	for actionID, message := range c.responses {
		doc.Responses[actionID] = message
	}
	return doc
}

func copyIntent(intent Intent) Intent {
	var out Intent
	_ = copier.CopyWithOption(&out, &intent, copier.Option{DeepCopy: true})
	return out
}
