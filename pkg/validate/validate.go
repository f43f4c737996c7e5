package validate

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// mailboxPattern accepts the plain local@domain.tld shape the submission form asks for
var mailboxPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// New returns a validator that reports fields by their json names and knows the "mailbox" tag
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return IsMailbox(fl.Field().String())
	})

	return v
}

// IsMailbox reports whether s looks like local@domain.tld
func IsMailbox(s string) bool {
	return mailboxPattern.MatchString(s)
}
