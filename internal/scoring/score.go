// Package scoring validates exam submissions and scores them against the
// exam's answer key.
package scoring

import (
	"time"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/model"
)

// Outcome is the computed score of one answer set against a resolved exam.
type Outcome struct {
	TotalScore      float64
	MaxScore        float64
	PercentageScore float64
	// Answers holds one entry per section question, in exam order.
	Answers  []model.RecordedAnswer
	Sections []model.SectionReport
}

// Score matches answers against the exam and accumulates weights.
// It is the only place where answer matching happens.
//
// Answers are keyed by section question id; on duplicates the last one wins.
// A question without a submitted answer is recorded with an empty answer
// stamped now. Matching is exact string equality with the correct option.
// PercentageScore is 0 when the exam carries no weight.
func Score(exam *model.Exam, answers []model.SubmittedAnswer, now time.Time) (Outcome, error) {
	submitted := make(map[string]model.SubmittedAnswer, len(answers))
	for _, a := range answers {
		submitted[a.SectionQuestionID] = a
	}

	var out Outcome
	out.Sections = make([]model.SectionReport, 0, len(exam.Sections))
	for _, sec := range exam.Sections {
		report := model.SectionReport{Title: sec.Title, Questions: make([]model.QuestionReport, 0, len(sec.Questions))}
		for _, sq := range sec.Questions {
			if sq.Question == nil {
				return Outcome{}, apperr.New(apperr.KindServerError,
					"section question %s references unresolved question %s", sq.ID, sq.QuestionID)
			}

			answer := ""
			answeredAt := now
			if a, ok := submitted[sq.ID]; ok {
				answer = a.Answer
				if a.Timestamp != nil {
					answeredAt = *a.Timestamp
				}
			}

			correct := false
			if opt, ok := sq.Question.CorrectOption(); ok {
				correct = answer == opt.Text
			}
			awarded := 0.0
			if correct {
				awarded = sq.Score
			}
			out.TotalScore += awarded
			out.MaxScore += sq.Score

			out.Answers = append(out.Answers, model.RecordedAnswer{
				SectionQuestionID: sq.ID,
				Answer:            answer,
				Timestamp:         answeredAt.UTC(),
			})
			report.Questions = append(report.Questions, model.QuestionReport{
				SectionQuestionID: sq.ID,
				QuestionID:        sq.QuestionID,
				Question:          sq.Question.Text,
				Answer:            answer,
				IsCorrect:         correct,
				Score:             awarded,
			})
		}
		out.Sections = append(out.Sections, report)
	}

	if out.MaxScore > 0 {
		out.PercentageScore = out.TotalScore / out.MaxScore * 100
	}
	return out, nil
}
