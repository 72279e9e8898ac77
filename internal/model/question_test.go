package model_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-portal/internal/model"
)

const assessmentListJSON = `{
  "assessments": [
    {
      "id": 42,
      "title": "Final Exam Chemistry",
      "subject_name": "Chemistry",
      "class_name": "XI IPA 2",
      "duration_minutes": 90,
      "total_marks": 20,
      "assessment_type": "final_exam",
      "questions": [
        {
          "id": 101,
          "question_number": 1,
          "marks": 2.5,
          "question_text": "Pick the noble gas",
          "question_type": "multiple_choice",
          "options": [
            {"id": 1, "option_label": "A", "option_text": "Neon"},
            {"id": 2, "option_label": "B", "option_text": "Oxygen"}
          ]
        },
        {"id": 102, "question_number": 2, "marks": 1, "question_text": "Water is H2O", "question_type": "true_false"},
        {"id": 103, "question_number": 3, "marks": 1, "question_text": "Symbol of sodium is __", "question_type": "fill_blank"},
        {"id": 104, "question_number": 4, "marks": 5, "question_text": "Explain covalent bonds", "question_type": "essay", "question_image": "/media/bonds.png"},
        {
          "id": "q-105",
          "question_number": 5,
          "marks": "10.5",
          "question_text": "Match the formula",
          "question_type": "matching",
          "matching_pairs": [
            {"left_item": "NaCl", "right_item": "Water"},
            {"left_item": "H2O", "right_item": "Salt"}
          ]
        }
      ]
    }
  ]
}`

func TestAssessmentList_Unmarshal(t *testing.T) {
	var list struct {
		Assessments []model.Assessment `json:"assessments"`
	}
	require.NoError(t, json.Unmarshal([]byte(assessmentListJSON), &list))
	require.Len(t, list.Assessments, 1)

	a := list.Assessments[0]
	require.Equal(t, model.ID("42"), a.ID)
	require.True(t, a.IsFinalExam())
	require.Equal(t, 5400, a.DurationSeconds())
	require.True(t, decimal.NewFromInt(20).Equal(a.TotalMarks))
	require.NoError(t, a.Check())

	wantTypes := []model.QuestionType{
		model.QuestionTypeMultipleChoice,
		model.QuestionTypeTrueFalse,
		model.QuestionTypeFillBlank,
		model.QuestionTypeEssay,
		model.QuestionTypeMatching,
	}
	for i, q := range a.Questions {
		require.Equal(t, wantTypes[i], q.Type(), "question %d", i)
	}

	mc, ok := a.Questions[0].Variant.(model.MultipleChoice)
	require.True(t, ok)
	require.Equal(t, model.ID("1"), mc.Options[0].ID)
	require.True(t, decimal.NewFromFloat(2.5).Equal(a.Questions[0].Marks))

	mt, ok := a.Questions[4].Variant.(model.Matching)
	require.True(t, ok)
	require.Len(t, mt.Pairs, 2)
	require.Equal(t, "B", mt.LastLabel())
	require.Equal(t, model.ID("q-105"), a.Questions[4].ID)
	require.Equal(t, "/media/bonds.png", a.Questions[3].ImageURL)
}

func TestQuestion_UnmarshalUnknownType(t *testing.T) {
	var q model.Question
	err := json.Unmarshal([]byte(`{"id": 1, "question_type": "drag_drop"}`), &q)
	require.ErrorContains(t, err, "drag_drop")
}

func TestQuestion_MarshalRoundTripKeepsVariant(t *testing.T) {
	in := model.Question{
		ID:      "7",
		Marks:   decimal.NewFromInt(3),
		Text:    "Match",
		Variant: model.Matching{Pairs: []model.MatchingPair{{Left: "a", Right: "b"}}},
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(b), `"question_type":"matching"`)
	require.NotContains(t, string(b), `"options"`)

	var out model.Question
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, in.Variant, out.Variant)
	require.True(t, in.Marks.Equal(out.Marks))
}

func TestAssessment_Check(t *testing.T) {
	valid := func() model.Assessment {
		return model.Assessment{
			ID:              "1",
			Title:           "Quiz",
			DurationMinutes: 5,
			Questions: []model.Question{
				{ID: "a", Marks: decimal.NewFromInt(1), Variant: model.Essay{}},
				{ID: "b", Marks: decimal.NewFromInt(1), Variant: model.TrueFalse{}},
			},
		}
	}

	tests := map[string]struct {
		mutate  func(a *model.Assessment)
		wantErr error
	}{
		"valid": {mutate: func(*model.Assessment) {}},
		"zero duration": {
			mutate:  func(a *model.Assessment) { a.DurationMinutes = 0 },
			wantErr: model.ErrInvalidAssessment,
		},
		"question id shadows a matching pair key": {
			mutate: func(a *model.Assessment) {
				a.Questions[0] = model.Question{ID: "5", Marks: decimal.NewFromInt(1),
					Variant: model.Matching{Pairs: []model.MatchingPair{{Left: "x", Right: "y"}}}}
				a.Questions[1].ID = "5_0"
			},
			wantErr: model.ErrDuplicateQuestion,
		},
		"underscored id next to matching is fine": {
			mutate: func(a *model.Assessment) {
				a.Questions[0] = model.Question{ID: "5", Marks: decimal.NewFromInt(1),
					Variant: model.Matching{Pairs: []model.MatchingPair{{Left: "x", Right: "y"}}}}
				a.Questions[1].ID = "5_1"
			},
		},
		"duplicate question": {
			mutate:  func(a *model.Assessment) { a.Questions[1].ID = "a" },
			wantErr: model.ErrDuplicateQuestion,
		},
		"zero marks": {
			mutate:  func(a *model.Assessment) { a.Questions[0].Marks = decimal.Zero },
			wantErr: model.ErrInvalidAssessment,
		},
		"multiple choice without options": {
			mutate:  func(a *model.Assessment) { a.Questions[0].Variant = model.MultipleChoice{} },
			wantErr: model.ErrInvalidAssessment,
		},
		"matching without pairs": {
			mutate:  func(a *model.Assessment) { a.Questions[0].Variant = model.Matching{} },
			wantErr: model.ErrInvalidAssessment,
		},
		"missing variant": {
			mutate:  func(a *model.Assessment) { a.Questions[0].Variant = nil },
			wantErr: model.ErrInvalidAssessment,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a := valid()
			tt.mutate(&a)

			err := a.Check()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
