// Package stats aggregates the results of one exam.
package stats

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/metrics"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/store"
)

// DefaultPassRatio is the share of the exam's max score needed to pass when
// the exam sets no pass score.
const DefaultPassRatio = 0.6

// Source provides the raw exam and its participant rows.
type Source interface {
	GetExam(ctx context.Context, id string) (*model.Exam, error)
	ResultsByExam(ctx context.Context, examID string) ([]model.Participant, error)
}

// Aggregator computes exam statistics on demand.
type Aggregator struct {
	src Source
}

// New creates an Aggregator.
func New(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Compute aggregates every result of the exam. Values are kept at full precision.
func (a *Aggregator) Compute(ctx context.Context, examID string) (*model.ExamStatistics, error) {
	st, err := a.compute(ctx, examID)
	if err != nil {
		metrics.ObserveStatistics(string(apperr.KindOf(err)))
		return nil, err
	}
	metrics.ObserveStatistics("ok")
	return st, nil
}

func (a *Aggregator) compute(ctx context.Context, examID string) (*model.ExamStatistics, error) {
	exam, err := a.src.GetExam(ctx, examID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("exam %s not found", examID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "load exam %s", examID)
	}

	maxScore := exam.StoredMaxScore()
	if exam.MaxScore == nil {
		maxScore = exam.DerivedMaxScore()
	}
	passScore := DefaultPassRatio * maxScore
	if exam.PassScore != nil {
		passScore = *exam.PassScore
	}

	participants, err := a.src.ResultsByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "load results of exam %s", examID)
	}
	if len(participants) == 0 {
		return nil, apperr.NotFound("no results for exam %s", examID)
	}

	st := &model.ExamStatistics{
		ExamID:            examID,
		PassScore:         passScore,
		TotalParticipants: len(participants),
		HighestScore:      participants[0].Score,
		LowestScore:       participants[0].Score,
		Participants:      participants,
	}
	var sum float64
	for _, p := range participants {
		sum += p.Score
		if p.Score > st.HighestScore {
			st.HighestScore = p.Score
		}
		if p.Score < st.LowestScore {
			st.LowestScore = p.Score
		}
		if p.Score >= passScore {
			st.PassCount++
		}
	}
	n := float64(len(participants))
	st.AverageScore = sum / n
	st.PassPercentage = float64(st.PassCount) / n * 100

	slog.Debug("computed exam statistics",
		"exam_id", examID,
		"participants", st.TotalParticipants,
		"pass_count", st.PassCount,
	)
	return st, nil
}

// Display returns a copy with the average score and pass percentage rounded
// to two decimals for presentation.
func Display(st model.ExamStatistics) model.ExamStatistics {
	st.AverageScore = round2(st.AverageScore)
	st.PassPercentage = round2(st.PassPercentage)
	return st
}

func round2(f float64) float64 {
	r, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return r
}
