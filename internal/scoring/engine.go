package scoring

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/metrics"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/store"
)

// DeletedExamName is the placeholder name of a result whose exam is gone.
const DeletedExamName = "exam deleted"

// ExamRepository loads exams. Both methods return an error wrapping
// store.ErrNotFound when the exam does not exist.
type ExamRepository interface {
	GetExam(ctx context.Context, id string) (*model.Exam, error)
	GetResolvedExam(ctx context.Context, id string) (*model.Exam, error)
}

// ResultStore persists and reads exam results.
type ResultStore interface {
	CreateResult(ctx context.Context, r model.ExamResult) (model.ExamResult, error)
	GetResult(ctx context.Context, id string) (*model.ExamResult, error)
	ResultsByStudent(ctx context.Context, studentID string) ([]model.ExamResult, error)
}

// Notifier is told about every persisted result.
type Notifier interface {
	ResultCreated(ctx context.Context, r model.ExamResult) error
}

// Submission is one student's answer set for an exam. StartTime and EndTime
// are the client-reported window as RFC 3339 strings.
type Submission struct {
	ExamID    string
	StudentID string
	Answers   []model.SubmittedAnswer
	StartTime string
	EndTime   string
}

// Engine scores submissions and lists stored results.
type Engine struct {
	exams    ExamRepository
	results  ResultStore
	notifier Notifier
	now      func() time.Time
}

// NewEngine creates an Engine. notifier may be nil.
func NewEngine(exams ExamRepository, results ResultStore, notifier Notifier) *Engine {
	return &Engine{
		exams:    exams,
		results:  results,
		notifier: notifier,
		now:      time.Now,
	}
}

// Submit validates a submission, scores it, persists the result and returns
// the score report. Nothing is persisted when any step before it fails.
func (e *Engine) Submit(ctx context.Context, sub Submission) (*model.ScoreReport, error) {
	report, err := e.submit(ctx, sub)
	if err != nil {
		metrics.ObserveSubmission(string(apperr.KindOf(err)), 0)
		return nil, err
	}
	metrics.ObserveSubmission(metrics.OutcomeScored, report.PercentageScore)
	return report, nil
}

func (e *Engine) submit(ctx context.Context, sub Submission) (*model.ScoreReport, error) {
	if len(sub.Answers) == 0 {
		return nil, apperr.InvalidInput("answers must be a non-empty array")
	}
	start, end, err := parseWindow(sub.StartTime, sub.EndTime)
	if err != nil {
		return nil, err
	}

	exam, err := e.exams.GetResolvedExam(ctx, sub.ExamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("exam %s not found", sub.ExamID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "load exam %s", sub.ExamID)
	}

	now := e.now()
	if now.After(exam.EndDate) {
		return nil, apperr.New(apperr.KindExamExpired, "exam %s closed at %s",
			sub.ExamID, exam.EndDate.UTC().Format(time.RFC3339))
	}

	out, err := Score(exam, sub.Answers, now)
	if err != nil {
		slog.Error("failed to score submission", "exam_id", sub.ExamID, "student_id", sub.StudentID, "error", err)
		return nil, err
	}

	saved, err := e.results.CreateResult(ctx, model.ExamResult{
		StudentID:       sub.StudentID,
		ExamID:          sub.ExamID,
		Answers:         out.Answers,
		StartTime:       start,
		EndTime:         end,
		TotalScore:      out.TotalScore,
		PercentageScore: out.PercentageScore,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "save result")
	}
	slog.Info("scored submission",
		"exam_id", sub.ExamID,
		"student_id", sub.StudentID,
		"result_id", saved.ID,
		"total_score", out.TotalScore,
		"max_score", out.MaxScore,
	)

	if e.notifier != nil {
		if err := e.notifier.ResultCreated(ctx, saved); err != nil {
			slog.Warn("failed to publish result event", "result_id", saved.ID, "error", err)
		}
	}

	return &model.ScoreReport{
		ResultID:        saved.ID,
		TotalScore:      out.TotalScore,
		MaxScore:        out.MaxScore,
		PercentageScore: out.PercentageScore,
		StartTime:       start,
		EndTime:         end,
		Duration:        int(math.Round(end.Sub(start).Minutes())),
		Sections:        out.Sections,
	}, nil
}

func parseWindow(startTime, endTime string) (time.Time, time.Time, error) {
	if startTime == "" || endTime == "" {
		return time.Time{}, time.Time{}, apperr.InvalidInput("startTime and endTime are required")
	}
	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.InvalidInput("startTime is not a valid date-time")
	}
	end, err := time.Parse(time.RFC3339, endTime)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.InvalidInput("endTime is not a valid date-time")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.InvalidInput("endTime must not be before startTime")
	}
	return start.UTC(), end.UTC(), nil
}

// Result returns one stored result with its recorded answers.
func (e *Engine) Result(ctx context.Context, id string) (*model.ExamResult, error) {
	r, err := e.results.GetResult(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("result %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "load result %s", id)
	}
	return r, nil
}

// ListResults returns the student's results, most recent end time first.
// Results whose exam no longer exists are kept with status deleted.
func (e *Engine) ListResults(ctx context.Context, studentID string) ([]model.ResultSummary, error) {
	results, err := e.results.ResultsByStudent(ctx, studentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "load results of student %s", studentID)
	}
	if len(results) == 0 {
		return nil, apperr.NotFound("no results for student %s", studentID)
	}

	exams := make(map[string]*model.Exam)
	summaries := make([]model.ResultSummary, 0, len(results))
	for _, r := range results {
		s := model.ResultSummary{
			ResultID:        r.ID,
			ExamID:          r.ExamID,
			Score:           r.TotalScore,
			PercentageScore: r.PercentageScore,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			Status:          model.ResultCompleted,
		}

		exam, seen := exams[r.ExamID]
		if !seen {
			exam, err = e.exams.GetExam(ctx, r.ExamID)
			if errors.Is(err, store.ErrNotFound) {
				exam = nil
			} else if err != nil {
				return nil, apperr.Wrap(apperr.KindServerError, err, "load exam %s", r.ExamID)
			}
			exams[r.ExamID] = exam
		}

		if exam == nil {
			s.ExamName = DeletedExamName
			s.Status = model.ResultDeleted
		} else {
			s.ExamName = exam.Name
			s.MaxScore = exam.MaxScore
			s.Duration = exam.Duration
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].EndTime.After(summaries[j].EndTime)
	})
	return summaries, nil
}
