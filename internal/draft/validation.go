package draft

import (
	"sort"
	"strings"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/pkg/validate"
)

// Field error messages shown next to the submission form inputs
const (
	MsgNameRequired  = "Name is required"
	MsgEmailRequired = "Email is required"
	MsgEmailInvalid  = "Please enter a valid email address"
	MsgNoEntries     = "Error: No availability selected"
)

// ValidationError lists every invalid submission field at once, keyed by
// form field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = k + ": " + e.Fields[k]
	}
	return "invalid submission: " + strings.Join(msgs, "; ")
}

// ValidateSubmission checks the submission form. It returns nil or a
// *ValidationError.
func ValidateSubmission(name, email string, entries []availability.CalendarEntry) error {
	fields := map[string]string{}

	if strings.TrimSpace(name) == "" {
		fields["name"] = MsgNameRequired
	}

	email = strings.TrimSpace(email)
	switch {
	case email == "":
		fields["email"] = MsgEmailRequired
	case !validate.IsMailbox(email):
		fields["email"] = MsgEmailInvalid
	}

	if len(entries) == 0 {
		fields["availableSlots"] = MsgNoEntries
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
