package models

import (
	"errors"
	"fmt"
)

// OptionKeys lists the keys every question's options must use, in order.
var OptionKeys = []string{"A", "B", "C", "D"}

// Option is one selectable answer for a question.
type Option struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// Question is read-only trivia content supplied by the question bank.
type Question struct {
	ID         string   `json:"id" yaml:"id"`
	Prompt     string   `json:"prompt" yaml:"prompt"`
	Options    []Option `json:"options" yaml:"options"`
	CorrectKey string   `json:"correctKey" yaml:"correct_key"`
	Commentary string   `json:"commentary,omitempty" yaml:"commentary"`
	Category   string   `json:"category,omitempty" yaml:"category"`
}

// Validate checks the structural rules for a question: an ID, a prompt, four
// options keyed A-D and a correct key naming one of them.
func (q Question) Validate() error {
	if q.ID == "" {
		return errors.New("question id is required")
	}
	if q.Prompt == "" {
		return fmt.Errorf("question %s: prompt is required", q.ID)
	}
	if len(q.Options) != len(OptionKeys) {
		return fmt.Errorf("question %s: expected %d options, got %d", q.ID, len(OptionKeys), len(q.Options))
	}
	for i, opt := range q.Options {
		if opt.Key != OptionKeys[i] {
			return fmt.Errorf("question %s: option %d has key %q, want %q", q.ID, i, opt.Key, OptionKeys[i])
		}
		if opt.Text == "" {
			return fmt.Errorf("question %s: option %s has no text", q.ID, opt.Key)
		}
	}
	if !q.HasOption(q.CorrectKey) {
		return fmt.Errorf("question %s: correct key %q is not one of the options", q.ID, q.CorrectKey)
	}
	return nil
}

// HasOption reports whether key names one of the question's options.
func (q Question) HasOption(key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}
