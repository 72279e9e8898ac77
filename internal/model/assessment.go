package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// AssessmentType tags the kind of assessment. Only final exams get special
// treatment in the UI; every other value is rendered as a regular test.
type AssessmentType string

const (
	AssessmentTypeFinalExam AssessmentType = "final_exam"
)

// Assessment is a timed exam or test as served by the school backend.
// It is immutable once loaded.
type Assessment struct {
	ID              ID              `json:"id" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	Subject         string          `json:"subject_name"`
	ClassName       string          `json:"class_name"`
	DurationMinutes int             `json:"duration_minutes" validate:"min=1"`
	TotalMarks      decimal.Decimal `json:"total_marks"`
	AssessmentType  AssessmentType  `json:"assessment_type"`
	Questions       []Question      `json:"questions" validate:"dive"`
}

// IsFinalExam reports whether the assessment is a final exam.
func (a *Assessment) IsFinalExam() bool {
	return a.AssessmentType == AssessmentTypeFinalExam
}

// DurationSeconds returns the allotted time in seconds.
func (a *Assessment) DurationSeconds() int {
	return a.DurationMinutes * 60
}

// Question returns the question with the given id.
func (a *Assessment) Question(id ID) (*Question, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

var (
	ErrInvalidAssessment = errors.New("invalid assessment")
	ErrDuplicateQuestion = errors.New("duplicate question id")
)

// Check verifies the invariants the struct tags cannot express:
// positive marks, unique question ids, non-empty variant payloads and
// answer keys that stay distinct in their wire form.
func (a *Assessment) Check() error {
	if a.DurationMinutes < 1 {
		return fmt.Errorf("%w: duration_minutes must be positive, got %d", ErrInvalidAssessment, a.DurationMinutes)
	}

	seen := make(map[ID]struct{}, len(a.Questions))
	for i := range a.Questions {
		q := &a.Questions[i]
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}

		if !q.Marks.IsPositive() {
			return fmt.Errorf("%w: question %s has non-positive marks", ErrInvalidAssessment, q.ID)
		}
		if q.Variant == nil {
			return fmt.Errorf("%w: question %s has no question_type", ErrInvalidAssessment, q.ID)
		}
		if err := q.Variant.check(); err != nil {
			return fmt.Errorf("%w: question %s: %v", ErrInvalidAssessment, q.ID, err)
		}
	}
	return a.checkAnswerKeys()
}

// checkAnswerKeys rejects a question id such as "5_0" that would share a
// wire key with pair 0 of matching question "5".
func (a *Assessment) checkAnswerKeys() error {
	owner := make(map[string]ID)
	for i := range a.Questions {
		q := &a.Questions[i]
		for _, key := range q.answerKeys() {
			wire := key.String()
			if other, taken := owner[wire]; taken {
				return fmt.Errorf("%w: answer key %q of question %s collides with question %s",
					ErrDuplicateQuestion, wire, q.ID, other)
			}
			owner[wire] = q.ID
		}
	}
	return nil
}
