package session

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-portal/internal/model"
)

// ErrStoreFrozen is returned when recording into a store that has been
// handed over for submission.
var ErrStoreFrozen = errors.New("answer store is frozen")

// AnswerStore holds the in-progress answers of one session. It is not safe
// for concurrent use; Session serialises access.
type AnswerStore struct {
	assessment *model.Assessment
	values     map[model.AnswerKey]string
	frozen     bool
}

// NewAnswerStore creates an empty store for a.
func NewAnswerStore(a *model.Assessment) *AnswerStore {
	return &AnswerStore{
		assessment: a,
		values:     make(map[model.AnswerKey]string),
	}
}

// Record validates value against the question's answer domain and upserts it.
func (s *AnswerStore) Record(key model.AnswerKey, value string) error {
	if s.frozen {
		return ErrStoreFrozen
	}

	q, ok := s.assessment.Question(key.QuestionID)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownQuestion, key.QuestionID)
	}

	normalized, err := q.NormalizeAnswer(key, value)
	if err != nil {
		return err
	}

	s.values[key] = normalized
	return nil
}

// Answered counts distinct questions with at least one stored key.
func (s *AnswerStore) Answered() int {
	seen := make(map[model.ID]struct{}, len(s.values))
	for k := range s.values {
		seen[k.QuestionID] = struct{}{}
	}
	return len(seen)
}

// Total is the number of questions in the assessment.
func (s *AnswerStore) Total() int {
	return len(s.assessment.Questions)
}

// Snapshot returns a copy of the answers keyed by wire-form answer key.
func (s *AnswerStore) Snapshot() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k.String()] = v
	}
	return out
}

// Freeze makes the store read-only.
func (s *AnswerStore) Freeze() {
	s.frozen = true
}
