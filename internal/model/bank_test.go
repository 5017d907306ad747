package model

import (
	"strings"
	"testing"
)

func validQuestion(id string) Question {
	return Question{
		ID:   id,
		Text: "Question " + id,
		Answers: []AnswerOption{
			{Text: "yes", IsCorrect: true},
			{Text: "no"},
		},
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *Question)
		wantErr string
	}{
		{"valid", func(q *Question) {}, ""},
		{"missing id", func(q *Question) { q.ID = "" }, "id"},
		{"missing text", func(q *Question) { q.Text = "" }, "text"},
		{"one option", func(q *Question) { q.Answers = q.Answers[:1] }, "at least 2 options"},
		{"no correct", func(q *Question) { q.Answers[0].IsCorrect = false }, "exactly one correct"},
		{"two correct", func(q *Question) { q.Answers[1].IsCorrect = true }, "exactly one correct"},
		{"empty option text", func(q *Question) { q.Answers[1].Text = "" }, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion("q1")
			tt.mutate(&q)
			err := q.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExamValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Exam)
		wantErr bool
	}{
		{"valid", func(e *Exam) {}, false},
		{"end before start", func(e *Exam) { e.EndDate = e.StartDate.Add(-1) }, true},
		{"end equals start", func(e *Exam) { e.EndDate = e.StartDate }, true},
		{"no sections", func(e *Exam) { e.Sections = nil }, true},
		{"no questions", func(e *Exam) { e.Sections[0].Questions = nil }, true},
		{"negative weight", func(e *Exam) { e.Sections[0].Questions[0].Score = -1 }, true},
		{"duplicate section question id", func(e *Exam) {
			e.Sections = append(e.Sections, ExamSection{
				Title:     "Part 2",
				Questions: []SectionQuestion{{ID: "sq1", QuestionID: "q2", Score: 1}},
			})
		}, true},
		{"zero max attempts", func(e *Exam) { zero := 0; e.MaxAttempts = &zero }, true},
		{"missing name", func(e *Exam) { e.Name = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExam()
			tt.mutate(&e)
			err := e.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	e := validExam()
	e.Sections[0].Questions = append(e.Sections[0].Questions, SectionQuestion{ID: "sq2", QuestionID: "q2"})
	e.ApplyDefaults()
	if got := e.Sections[0].Questions[1].Score; got != DefaultQuestionScore {
		t.Errorf("default weight = %v, want %v", got, DefaultQuestionScore)
	}
	if got := e.Sections[0].Questions[0].Score; got != 1 {
		t.Errorf("explicit weight changed to %v", got)
	}
}

func TestBankImportValidate(t *testing.T) {
	bank := BankImport{
		Questions: []Question{validQuestion("q1")},
		Exams:     []Exam{validExam()},
	}
	if err := bank.Validate(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exam referencing a question neither imported nor known.
	bank.Exams[0].Sections[0].Questions[0].QuestionID = "q9"
	err := bank.Validate(map[string]bool{"q2": true})
	if err == nil || !strings.Contains(err.Error(), "q9") {
		t.Fatalf("expected unknown question error, got %v", err)
	}

	// The reference resolves against already stored questions.
	if err := bank.Validate(map[string]bool{"q9": true}); err != nil {
		t.Errorf("known question should satisfy reference: %v", err)
	}
}
