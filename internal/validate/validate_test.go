package validate

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maskan/internal/errors"
)

type signupInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(signupInput{Name: "Ann", Email: "ann@x.com", Password: "secret1"}))

	err := v.Struct(signupInput{Email: "nope", Password: "123"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	var verr *errors.ValidationError
	require.True(t, stderrors.As(err, &verr))

	byField := map[string]string{}
	for _, f := range verr.Fields {
		byField[f.Field] = f.Message
	}
	assert.Equal(t, "name is required", byField["name"])
	assert.Equal(t, "email must be a valid email address", byField["email"])
	assert.Equal(t, "password must be at least 6 characters", byField["password"])
}
