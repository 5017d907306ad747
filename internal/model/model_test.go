package model

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCorrectOption(t *testing.T) {
	tests := []struct {
		name    string
		answers []AnswerOption
		want    string
		wantOK  bool
	}{
		{"second correct", []AnswerOption{{Text: "a"}, {Text: "b", IsCorrect: true}}, "b", true},
		{"none correct", []AnswerOption{{Text: "a"}, {Text: "b"}}, "", false},
		{"first of two wins", []AnswerOption{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}, "a", true},
		{"no options", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Question{Answers: tt.answers}.CorrectOption()
			if ok != tt.wantOK || got.Text != tt.want {
				t.Errorf("CorrectOption() = %q, %v; want %q, %v", got.Text, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStoredMaxScore(t *testing.T) {
	if got := (Exam{}).StoredMaxScore(); got != 0 {
		t.Errorf("unset max score = %v, want 0", got)
	}
	m := 42.5
	if got := (Exam{MaxScore: &m}).StoredMaxScore(); got != 42.5 {
		t.Errorf("StoredMaxScore() = %v, want 42.5", got)
	}
}

func TestDerivedMaxScore(t *testing.T) {
	if got := (Exam{}).DerivedMaxScore(); got != 0 {
		t.Errorf("empty exam = %v, want 0", got)
	}
	e := Exam{Sections: []ExamSection{
		{Questions: []SectionQuestion{{ID: "a", Score: 1}, {ID: "b", Score: 3}}},
		{Questions: []SectionQuestion{{ID: "c", Score: 0.5}}},
	}}
	if got := e.DerivedMaxScore(); got != 4.5 {
		t.Errorf("DerivedMaxScore() = %v, want 4.5", got)
	}
}

func TestQuestionIDsDistinctInOrder(t *testing.T) {
	e := Exam{Sections: []ExamSection{
		{Questions: []SectionQuestion{{ID: "a", QuestionID: "q2"}, {ID: "b", QuestionID: "q1"}}},
		{Questions: []SectionQuestion{{ID: "c", QuestionID: "q2"}, {ID: "d", QuestionID: "q3"}}},
	}}
	got := strings.Join(e.QuestionIDs(), ",")
	if got != "q2,q1,q3" {
		t.Errorf("QuestionIDs() = %s, want q2,q1,q3", got)
	}
}

func TestWithoutAnswerKey(t *testing.T) {
	q := &Question{ID: "q1", Text: "Capital?", Answers: []AnswerOption{
		{Text: "Paris", IsCorrect: true},
		{Text: "Rome"},
	}}
	e := Exam{ID: "e1", Sections: []ExamSection{{
		Title:     "Geo",
		Questions: []SectionQuestion{{ID: "sq1", QuestionID: "q1", Score: 2, Question: q}, {ID: "sq2", QuestionID: "gone"}},
	}}}

	stripped := e.WithoutAnswerKey()
	got := stripped.Sections[0].Questions[0].Question
	if got == nil || len(got.Answers) != 2 {
		t.Fatalf("unexpected stripped question %+v", got)
	}
	for _, o := range got.Answers {
		if o.IsCorrect {
			t.Errorf("option %q still flagged correct", o.Text)
		}
	}
	if got.Answers[0].Text != "Paris" {
		t.Errorf("option text lost: %q", got.Answers[0].Text)
	}
	if stripped.Sections[0].Questions[1].Question != nil {
		t.Error("unresolved question should stay nil")
	}
	// The source exam keeps its answer key.
	if !q.Answers[0].IsCorrect || !e.Sections[0].Questions[0].Question.Answers[0].IsCorrect {
		t.Error("WithoutAnswerKey mutated the original exam")
	}
}

func TestUserContext(t *testing.T) {
	if UserFromContext(context.Background()) != nil {
		t.Error("expected nil user on empty context")
	}
	u := &User{ID: "u1", Role: UserRoleStudent}
	ctx := ContextWithUser(context.Background(), u)
	if got := UserFromContext(ctx); got != u {
		t.Errorf("UserFromContext() = %v, want %v", got, u)
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []UserRole{UserRoleUser, UserRoleStudent, UserRoleTeacher, UserRoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%q) = false", r)
		}
	}
	if ValidRole("superuser") {
		t.Error("ValidRole(superuser) = true")
	}
}

func validExam() Exam {
	return Exam{
		ID:        "e1",
		Name:      "Midterm",
		StartDate: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Sections: []ExamSection{{
			Title:     "Part 1",
			Questions: []SectionQuestion{{ID: "sq1", QuestionID: "q1", Score: 1}},
		}},
	}
}
