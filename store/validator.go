package store

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Column limits.
const (
	maxTitleLen       = 200
	maxListLen        = 500
	maxTermNameLen    = 50
	maxDescriptionLen = 200
)

// ValidationError lists field problems found before any write.
type ValidationError struct {
	Errors map[string]string
}

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+e.Errors[f])
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(parts, "; "))
}

// Validator collects field errors.
type Validator struct {
	Errors map[string]string
}

func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(field, message string) {
	if _, ok := v.Errors[field]; !ok {
		v.Errors[field] = message
	}
}

func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

func (v *Validator) ValidationError() error {
	return ValidationError{Errors: v.Errors}
}

func validatePost(v *Validator, in PostInput) {
	v.Check(strings.TrimSpace(in.Title) != "", "title", "must be provided")
	v.Check(utf8.RuneCountInString(in.Title) <= maxTitleLen, "title", fmt.Sprintf("must not be more than %d characters", maxTitleLen))
	v.Check(strings.TrimSpace(in.Content) != "", "content", "must be provided")
	v.Check(utf8.RuneCountInString(in.Tags) <= maxListLen, "tags", fmt.Sprintf("must not be more than %d characters", maxListLen))
	v.Check(utf8.RuneCountInString(in.Categories) <= maxListLen, "categories", fmt.Sprintf("must not be more than %d characters", maxListLen))
	v.Check(in.ID >= 0, "id", "must not be negative")
}

func validateTerm(v *Validator, name, description string) {
	v.Check(name != "", "name", "must be provided")
	v.Check(utf8.RuneCountInString(name) <= maxTermNameLen, "name", fmt.Sprintf("must not be more than %d characters", maxTermNameLen))
	v.Check(utf8.RuneCountInString(description) <= maxDescriptionLen, "description", fmt.Sprintf("must not be more than %d characters", maxDescriptionLen))
}
