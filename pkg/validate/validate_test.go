package validate

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMailbox(t *testing.T) {
	assert.True(t, IsMailbox("john@example.com"))
	assert.True(t, IsMailbox("a.b+c@sub.example.org"))
	assert.False(t, IsMailbox("john@example"))
	assert.False(t, IsMailbox("john example@x.com"))
	assert.False(t, IsMailbox("@example.com"))
	assert.False(t, IsMailbox(""))
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	type form struct {
		Email string `json:"email" validate:"required,mailbox"`
	}

	err := New().Struct(form{Email: "nope"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "email", verrs[0].Field())
	assert.Equal(t, "mailbox", verrs[0].Tag())
}
