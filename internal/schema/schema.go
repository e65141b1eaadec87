// Package schema defines the ordered list of intake fields collected by the bot.
package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/user/freightbot/internal/types"
)

// Kind is the input kind of a field.
type Kind string

const (
	KindFreeText      Kind = "free_text"
	KindPhone         Kind = "phone"
	KindPhotoOptional Kind = "photo_optional"
	KindEnumChoice    Kind = "enum_choice"
)

// Sentinel values stored in place of user input.
const (
	NotProvided         = "not provided"
	DownloadFailed      = "photo download failed"
	UnspecifiedUsername = "unspecified"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Field is one intake question.
type Field struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Prompt  string   `yaml:"prompt"`
	Kind    Kind     `yaml:"kind"`
	Choices []string `yaml:"choices,omitempty"`
	Unit    string   `yaml:"unit,omitempty"`
}

// Schema is the immutable, ordered field list. Order defines both forward
// and backward navigation.
type Schema struct {
	Fields    []Field      `yaml:"fields"`
	NameField string       `yaml:"name_field"`
	HelpField string       `yaml:"help_field"`
	Labels    types.Labels `yaml:"labels"`

	index map[string]int
}

// New validates fields and builds the lookup index.
func New(s Schema) (*Schema, error) {
	s.Labels = s.Labels.Merge(types.DefaultLabels())
	s.Fields = append([]Field(nil), s.Fields...)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		s.index[f.Key] = i
	}
	return &s, nil
}

// Validate checks the schema invariants.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return errors.New("schema has no fields")
	}
	seenKeys := make(map[string]bool, len(s.Fields))
	seenLabels := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if !keyPattern.MatchString(f.Key) {
			return fmt.Errorf("field %d: invalid key %q", i, f.Key)
		}
		if seenKeys[f.Key] {
			return fmt.Errorf("duplicate field key %q", f.Key)
		}
		seenKeys[f.Key] = true
		if f.Label == "" || f.Prompt == "" {
			return fmt.Errorf("field %q: label and prompt are required", f.Key)
		}
		if seenLabels[f.Label] {
			return fmt.Errorf("duplicate field label %q", f.Label)
		}
		seenLabels[f.Label] = true
		switch f.Kind {
		case KindFreeText, KindPhone, KindPhotoOptional:
			if len(f.Choices) > 0 {
				return fmt.Errorf("field %q: choices are only allowed on %s fields", f.Key, KindEnumChoice)
			}
		case KindEnumChoice:
			if len(f.Choices) == 0 {
				return fmt.Errorf("field %q: %s requires choices", f.Key, KindEnumChoice)
			}
		default:
			return fmt.Errorf("field %q: unknown kind %q", f.Key, f.Kind)
		}
	}
	if s.NameField != "" && !seenKeys[s.NameField] {
		return fmt.Errorf("name_field %q is not a field key", s.NameField)
	}
	if s.HelpField != "" && !seenKeys[s.HelpField] {
		return fmt.Errorf("help_field %q is not a field key", s.HelpField)
	}
	return nil
}

func (s *Schema) Len() int { return len(s.Fields) }

// First returns the key of the first field.
func (s *Schema) First() string { return s.Fields[0].Key }

// Last returns the key of the last field.
func (s *Schema) Last() string { return s.Fields[len(s.Fields)-1].Key }

// Field returns the field with the given key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Next returns the key following key, or false if key is the last field.
func (s *Schema) Next(key string) (string, bool) {
	i, ok := s.index[key]
	if !ok || i+1 >= len(s.Fields) {
		return "", false
	}
	return s.Fields[i+1].Key, true
}

// Prev returns the key preceding key, or false if key is the first field.
func (s *Schema) Prev(key string) (string, bool) {
	i, ok := s.index[key]
	if !ok || i == 0 {
		return "", false
	}
	return s.Fields[i-1].Key, true
}

// ByLabel finds the field whose correction-menu label equals label.
func (s *Schema) ByLabel(label string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

func (s *Schema) FieldLabels() []string {
	labels := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		labels[i] = f.Label
	}
	return labels
}
