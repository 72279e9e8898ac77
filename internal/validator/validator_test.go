package validator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/validator"
)

type answerMessage struct {
	QID   string `json:"q_id" validate:"required,max=64"`
	Value string `json:"value" validate:"max=20000"`
	Pair  *int   `json:"pair" validate:"omitempty,min=0"`
}

func TestStruct(t *testing.T) {
	neg := -1

	err := validator.Struct(answerMessage{Pair: &neg})
	require.Error(t, err)

	fields := validator.TranslateErrors(err)
	require.Contains(t, fields, "q_id")
	require.Contains(t, fields, "pair")
	require.NotContains(t, fields, "value")

	require.NoError(t, validator.Struct(answerMessage{QID: "101", Value: "True"}))
}

func TestTranslateErrors_NonValidationError(t *testing.T) {
	fields := validator.TranslateErrors(errors.New("unexpected EOF"))
	require.Equal(t, map[string]string{"detail": "unexpected EOF"}, fields)
}
