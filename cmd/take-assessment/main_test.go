package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/session"
)

func TestRestAfter(t *testing.T) {
	tests := []struct {
		line string
		n    int
		want string
	}{
		{"answer 7 Photosynthesis  makes   sugar", 2, "Photosynthesis  makes   sugar"},
		{"  answer\t7 True ", 2, "True"},
		{"answer 7", 2, ""},
		{"answer", 2, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, restAfter(tt.line, tt.n), tt.line)
	}
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", clock(-3))
	assert.Equal(t, "01:05", clock(65))
	assert.Equal(t, "90:00", clock(5400))
}

func TestTerminal_Confirm(t *testing.T) {
	lines := make(chan string, 2)
	var out bytes.Buffer
	ui := newTerminal(&out, lines)
	req := session.ConfirmRequest{Answered: 2, Total: 5, Remaining: 30}

	lines <- "Y"
	ok, err := ui.confirm(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Submit 2 of 5 answered with 00:30 left?")

	lines <- "nope"
	ok, err = ui.confirm(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTerminal_ConfirmEndsWithSession(t *testing.T) {
	var out bytes.Buffer
	ui := newTerminal(&out, make(chan string))

	ui.StateChanged(session.Snapshot{State: session.StateSubmitted})

	ok, err := ui.confirm(context.Background(), session.ConfirmRequest{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitMessage(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"submitted":  {err: nil, want: "Submitted."},
		"declined":   {err: session.ErrSubmitDeclined, want: "Not submitted. Keep going."},
		"superseded": {err: session.ErrSubmitSuperseded, want: "Time ran out; your answers were submitted automatically."},
		"failed":     {err: &session.SubmitError{Err: errors.New("502")}, want: "Submit failed: submit assessment: 502"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, submitMessage(tt.err))
		})
	}
}

func TestAnswerKey(t *testing.T) {
	one := decimal.NewFromInt(1)
	a := &model.Assessment{Questions: []model.Question{
		{ID: "7", Marks: one, Variant: model.Essay{}},
		{ID: "q_8", Marks: one, Variant: model.Matching{Pairs: []model.MatchingPair{{Left: "a", Right: "b"}}}},
	}}

	key, err := answerKey(a, "7")
	require.NoError(t, err)
	assert.Equal(t, model.QuestionKey("7"), key)

	key, err = answerKey(a, "q_8_0")
	require.NoError(t, err)
	assert.Equal(t, model.PairKey("q_8", 0), key)

	_, err = answerKey(a, "q_8")
	assert.ErrorContains(t, err, "matching")

	_, err = answerKey(a, "9")
	assert.ErrorContains(t, err, "unknown question")

	_, err = answerKey(nil, "7")
	assert.Error(t, err)
}
