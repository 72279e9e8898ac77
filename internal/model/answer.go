package model

import (
	"fmt"
	"strconv"
	"strings"
)

// pairSeparator joins a question id and a pair index in the wire form of a
// matching answer key.
const pairSeparator = "_"

// AnswerKey addresses one answerable unit: a whole question, or a single pair
// of a matching question.
type AnswerKey struct {
	QuestionID ID
	Pair       int
	HasPair    bool
}

// QuestionKey addresses a whole question.
func QuestionKey(id ID) AnswerKey {
	return AnswerKey{QuestionID: id}
}

// PairKey addresses pair i of a matching question.
func PairKey(id ID, i int) AnswerKey {
	return AnswerKey{QuestionID: id, Pair: i, HasPair: true}
}

// String returns the wire form: "<question id>" or "<question id>_<pair>".
func (k AnswerKey) String() string {
	if !k.HasPair {
		return string(k.QuestionID)
	}
	return string(k.QuestionID) + pairSeparator + strconv.Itoa(k.Pair)
}

// ParseAnswerKey is the inverse of AnswerKey.String. Because question ids may
// themselves contain the separator, the caller says whether the key is
// expected to carry a pair index.
func ParseAnswerKey(s string, withPair bool) (AnswerKey, error) {
	if s == "" {
		return AnswerKey{}, fmt.Errorf("%w: empty answer key", ErrInvalidAnswer)
	}
	if !withPair {
		return QuestionKey(ID(s)), nil
	}

	i := strings.LastIndex(s, pairSeparator)
	if i <= 0 || i == len(s)-1 {
		return AnswerKey{}, fmt.Errorf("%w: %q", ErrMissingPair, s)
	}
	pair, err := strconv.Atoi(s[i+1:])
	if err != nil || pair < 0 {
		return AnswerKey{}, fmt.Errorf("%w: %q", ErrPairOutOfRange, s)
	}
	return PairKey(ID(s[:i]), pair), nil
}
