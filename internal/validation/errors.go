package validation

import (
	"errors"
	"sort"
	"strings"
)

var ErrValidation = errors.New("validation failed")

// Errors maps a JSON field name to a user-facing message.
type Errors map[string]string

// Add keeps the first message reported for a field.
func (errs Errors) Add(field, message string) {
	if _, ok := errs[field]; ok {
		return
	}
	errs[field] = message
}

func (errs Errors) Merge(other Errors) {
	for f, m := range other {
		errs.Add(f, m)
	}
}

// Only keeps the entries whose field is in fields.
func (errs Errors) Only(fields ...string) Errors {
	keep := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		keep[f] = struct{}{}
	}
	out := Errors{}
	for f, m := range errs {
		if _, ok := keep[f]; ok {
			out[f] = m
		}
	}
	return out
}

// Err returns nil when there is nothing to report.
func (errs Errors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return &Error{fields: errs}
}

// Error is returned by every operation that rejects user input.
type Error struct {
	fields Errors
}

func (e *Error) Fields() Errors {
	out := make(Errors, len(e.fields))
	for f, m := range e.fields {
		out[f] = m
	}
	return out
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

// FieldsOf extracts the field map from err, if it is a validation error.
func FieldsOf(err error) (Errors, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Fields(), true
	}
	return nil, false
}
