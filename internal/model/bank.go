package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultQuestionScore is the weight of a section question that sets none.
const DefaultQuestionScore = 1.0

// BankImport is the JSON document loaded by `examscore import` and the admin upload.
type BankImport struct {
	Questions []Question `json:"questions"`
	Exams     []Exam     `json:"exams"`
}

// Validate checks an option.
func (o AnswerOption) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Text, validation.Required),
	)
}

// Validate checks that the question has at least two options and exactly one correct.
func (q Question) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.ID, validation.Required),
		validation.Field(&q.Text, validation.Required),
		validation.Field(&q.Answers,
			validation.Required,
			validation.Length(2, 0).Error("must have at least 2 options"),
			validation.By(exactlyOneCorrect),
		),
	)
}

func exactlyOneCorrect(value any) error {
	opts, _ := value.([]AnswerOption)
	n := 0
	for _, o := range opts {
		if o.IsCorrect {
			n++
		}
	}
	if n != 1 {
		return errors.New("must have exactly one correct answer")
	}
	return nil
}

// Validate checks a section question reference.
func (sq SectionQuestion) Validate() error {
	return validation.ValidateStruct(&sq,
		validation.Field(&sq.ID, validation.Required),
		validation.Field(&sq.QuestionID, validation.Required),
		validation.Field(&sq.Score, validation.Min(0.0).Exclusive().Error("must be positive")),
	)
}

// Validate checks a section.
func (s ExamSection) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Title, validation.Required),
		validation.Field(&s.Questions),
	)
}

// Validate checks the exam window and structure. Exams without any
// question are rejected so that scoring never divides by a zero weight.
func (e Exam) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.StartDate, validation.Required),
		validation.Field(&e.EndDate, validation.Required,
			validation.Min(e.StartDate).Exclusive().Error("must be after startDate")),
		validation.Field(&e.MaxAttempts, validation.Min(1)),
		validation.Field(&e.Duration, validation.Min(1)),
		validation.Field(&e.MaxScore, validation.Min(0.0)),
		validation.Field(&e.PassScore, validation.Min(0.0)),
		validation.Field(&e.Sections, validation.Required, validation.By(hasQuestions), validation.By(uniqueSectionQuestionIDs)),
	)
}

func hasQuestions(value any) error {
	sections, _ := value.([]ExamSection)
	for _, s := range sections {
		if len(s.Questions) > 0 {
			return nil
		}
	}
	return errors.New("must contain at least one question")
}

func uniqueSectionQuestionIDs(value any) error {
	sections, _ := value.([]ExamSection)
	seen := make(map[string]bool)
	for _, s := range sections {
		for _, sq := range s.Questions {
			if seen[sq.ID] {
				return errors.New("duplicate section question id " + sq.ID)
			}
			seen[sq.ID] = true
		}
	}
	return nil
}

// ApplyDefaults fills the weight of section questions that set none.
func (e *Exam) ApplyDefaults() {
	for i := range e.Sections {
		for j := range e.Sections[i].Questions {
			if e.Sections[i].Questions[j].Score == 0 {
				e.Sections[i].Questions[j].Score = DefaultQuestionScore
			}
		}
	}
}

// Validate checks every question and exam, and that exams only reference
// questions present in the import or in known.
func (b BankImport) Validate(known map[string]bool) error {
	if err := validation.Validate(b.Questions); err != nil {
		return err
	}
	if err := validation.Validate(b.Exams); err != nil {
		return err
	}
	ids := make(map[string]bool, len(known)+len(b.Questions))
	for id := range known {
		ids[id] = true
	}
	for _, q := range b.Questions {
		ids[q.ID] = true
	}
	for _, e := range b.Exams {
		for _, qid := range e.QuestionIDs() {
			if !ids[qid] {
				return errors.New("exam " + e.ID + " references unknown question " + qid)
			}
		}
	}
	return nil
}
