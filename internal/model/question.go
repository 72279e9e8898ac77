package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// QuestionType is the wire tag selecting a question's shape.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeFillBlank      QuestionType = "fill_blank"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeMatching       QuestionType = "matching"
)

// Answer tokens accepted for true/false questions.
const (
	AnswerTrue  = "True"
	AnswerFalse = "False"
)

// Answer validation errors.
var (
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrUnexpectedPair  = errors.New("answer key has a pair index but question is not matching")
	ErrMissingPair     = errors.New("matching answer key requires a pair index")
	ErrPairOutOfRange  = errors.New("pair index out of range")
	ErrUnknownQuestion = errors.New("unknown question")
)

// Question is one item of an assessment. Its shape is carried by Variant.
type Question struct {
	ID       ID
	Position int
	Marks    decimal.Decimal
	Text     string
	ImageURL string
	Variant  Variant
}

// Type returns the question's wire tag.
func (q *Question) Type() QuestionType {
	return q.Variant.Type()
}

// NormalizeAnswer validates value against the question's answer domain and
// returns the canonical value to store.
func (q *Question) NormalizeAnswer(key AnswerKey, value string) (string, error) {
	if key.QuestionID != q.ID {
		return "", fmt.Errorf("%w: key %s does not belong to question %s", ErrInvalidAnswer, key, q.ID)
	}
	return q.Variant.normalize(key, value)
}

// answerKeys lists every key a student can answer the question under.
func (q *Question) answerKeys() []AnswerKey {
	m, ok := q.Variant.(Matching)
	if !ok {
		return []AnswerKey{QuestionKey(q.ID)}
	}
	keys := make([]AnswerKey, len(m.Pairs))
	for i := range m.Pairs {
		keys[i] = PairKey(q.ID, i)
	}
	return keys
}

// Variant is the closed set of question shapes. The unexported methods keep
// the set sealed to this package: a new shape must implement both the
// validation and the payload check before it compiles.
type Variant interface {
	Type() QuestionType
	normalize(key AnswerKey, value string) (string, error)
	check() error
}

// Option is one choice of a multiple-choice question.
type Option struct {
	ID    ID     `json:"id"`
	Label string `json:"option_label"`
	Text  string `json:"option_text"`
}

// MatchingPair is one row of a matching question.
type MatchingPair struct {
	Left  string `json:"left_item"`
	Right string `json:"right_item"`
}

// MultipleChoice answers are a single option id.
type MultipleChoice struct {
	Options []Option
}

func (MultipleChoice) Type() QuestionType { return QuestionTypeMultipleChoice }

func (v MultipleChoice) normalize(key AnswerKey, value string) (string, error) {
	if key.HasPair {
		return "", ErrUnexpectedPair
	}
	for _, o := range v.Options {
		if string(o.ID) == value {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not an option of question %s", ErrInvalidAnswer, value, key.QuestionID)
}

func (v MultipleChoice) check() error {
	if len(v.Options) == 0 {
		return errors.New("multiple choice question has no options")
	}
	return nil
}

// TrueFalse answers are AnswerTrue or AnswerFalse.
type TrueFalse struct{}

func (TrueFalse) Type() QuestionType { return QuestionTypeTrueFalse }

func (TrueFalse) normalize(key AnswerKey, value string) (string, error) {
	if key.HasPair {
		return "", ErrUnexpectedPair
	}
	if value != AnswerTrue && value != AnswerFalse {
		return "", fmt.Errorf("%w: %q is not True or False", ErrInvalidAnswer, value)
	}
	return value, nil
}

func (TrueFalse) check() error { return nil }

// FillBlank answers are free text.
type FillBlank struct{}

func (FillBlank) Type() QuestionType { return QuestionTypeFillBlank }

func (FillBlank) normalize(key AnswerKey, value string) (string, error) {
	return freeText(key, value)
}

func (FillBlank) check() error { return nil }

// Essay answers are free, typically multi-line, text.
type Essay struct{}

func (Essay) Type() QuestionType { return QuestionTypeEssay }

func (Essay) normalize(key AnswerKey, value string) (string, error) {
	return freeText(key, value)
}

func (Essay) check() error { return nil }

func freeText(key AnswerKey, value string) (string, error) {
	if key.HasPair {
		return "", ErrUnexpectedPair
	}
	return value, nil
}

// Matching questions are answered pair by pair with a letter from A up to
// the letter of the last pair.
type Matching struct {
	Pairs []MatchingPair
}

func (Matching) Type() QuestionType { return QuestionTypeMatching }

func (v Matching) normalize(key AnswerKey, value string) (string, error) {
	if !key.HasPair {
		return "", ErrMissingPair
	}
	if key.Pair < 0 || key.Pair >= len(v.Pairs) {
		return "", fmt.Errorf("%w: %d of %d", ErrPairOutOfRange, key.Pair, len(v.Pairs))
	}

	letter := strings.ToUpper(strings.TrimSpace(value))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] >= 'A'+byte(len(v.Pairs)) {
		return "", fmt.Errorf("%w: %q is not a letter between A and %s", ErrInvalidAnswer, value, v.LastLabel())
	}
	return letter, nil
}

func (v Matching) check() error {
	if len(v.Pairs) == 0 {
		return errors.New("matching question has no pairs")
	}
	if len(v.Pairs) > 26 {
		return errors.New("matching question has more pairs than letters")
	}
	return nil
}

// LastLabel is the highest letter a pair can be answered with.
func (v Matching) LastLabel() string {
	if len(v.Pairs) == 0 {
		return ""
	}
	return string(rune('A' + len(v.Pairs) - 1))
}

// questionJSON is the wire form of Question.
type questionJSON struct {
	ID           ID              `json:"id"`
	Position     int             `json:"question_number"`
	Marks        decimal.Decimal `json:"marks"`
	Text         string          `json:"question_text"`
	ImageURL     string          `json:"question_image,omitempty"`
	QuestionType QuestionType    `json:"question_type"`
	Options      []Option        `json:"options,omitempty"`
	Pairs        []MatchingPair  `json:"matching_pairs,omitempty"`
}

// UnmarshalJSON decodes the question and builds its variant from question_type.
func (q *Question) UnmarshalJSON(b []byte) error {
	var raw questionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var v Variant
	switch raw.QuestionType {
	case QuestionTypeMultipleChoice:
		v = MultipleChoice{Options: raw.Options}
	case QuestionTypeTrueFalse:
		v = TrueFalse{}
	case QuestionTypeFillBlank:
		v = FillBlank{}
	case QuestionTypeEssay:
		v = Essay{}
	case QuestionTypeMatching:
		v = Matching{Pairs: raw.Pairs}
	default:
		return fmt.Errorf("question %s: unknown question_type %q", raw.ID, raw.QuestionType)
	}

	*q = Question{
		ID:       raw.ID,
		Position: raw.Position,
		Marks:    raw.Marks,
		Text:     raw.Text,
		ImageURL: raw.ImageURL,
		Variant:  v,
	}
	return nil
}

// MarshalJSON encodes the question back to its tagged wire form.
func (q Question) MarshalJSON() ([]byte, error) {
	if q.Variant == nil {
		return nil, fmt.Errorf("question %s: missing variant", q.ID)
	}

	raw := questionJSON{
		ID:           q.ID,
		Position:     q.Position,
		Marks:        q.Marks,
		Text:         q.Text,
		ImageURL:     q.ImageURL,
		QuestionType: q.Variant.Type(),
	}
	switch v := q.Variant.(type) {
	case MultipleChoice:
		raw.Options = v.Options
	case Matching:
		raw.Pairs = v.Pairs
	}
	return json.Marshal(raw)
}
