package mongostore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examscore/internal/handler"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/store"
)

var _ handler.Store = (*Store)(nil)

// newTestStore connects to the server named by EXAMSCORE_TEST_MONGO_URI and
// uses a throwaway database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("EXAMSCORE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EXAMSCORE_TEST_MONGO_URI not set")
	}
	name := "examscore_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s, err := New(context.Background(), uri, name)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})
	return s
}

func seedExam(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, q := range []model.Question{
		{ID: "q1", Text: "Capital of France?", Answers: []model.AnswerOption{{Text: "Paris", IsCorrect: true}, {Text: "Lyon"}}},
		{ID: "q2", Text: "Capital of Italy?", Answers: []model.AnswerOption{{Text: "Rome", IsCorrect: true}, {Text: "Milan"}}},
	} {
		if _, err := s.InsertQuestion(ctx, q); err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
	}
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.InsertExam(ctx, model.Exam{
		ID: "geo-1", Name: "Geography", StartDate: start, EndDate: start.Add(time.Hour),
		Sections: []model.ExamSection{{Title: "Capitals", Questions: []model.SectionQuestion{
			{ID: "sq1", QuestionID: "q1", Score: 1},
			{ID: "sq2", QuestionID: "q2", Score: 3},
			{ID: "sq3", QuestionID: "gone", Score: 1},
		}}},
	})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
}

func TestExams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedExam(t, s)

	e, err := s.GetResolvedExam(ctx, "geo-1")
	if err != nil {
		t.Fatalf("GetResolvedExam: %v", err)
	}
	qs := e.Sections[0].Questions
	if len(qs) != 3 || qs[1].Question == nil || qs[1].Question.Text != "Capital of Italy?" {
		t.Fatalf("unexpected section questions %+v", qs)
	}
	if qs[2].Question != nil {
		t.Error("missing bank question should stay unresolved")
	}

	ids, err := s.ExamIDs(ctx)
	if err != nil || !ids["geo-1"] {
		t.Errorf("ExamIDs = %v, %v", ids, err)
	}

	if _, err := s.GetExam(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetExam(nope) error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteExam(ctx, "geo-1"); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if err := s.DeleteExam(ctx, "geo-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteExam error = %v, want ErrNotFound", err)
	}
}

func TestResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedExam(t, s)

	uid, err := s.CreateUser(ctx, model.User{Username: "alice", DisplayName: "Alice Smith", Email: "alice@example.com", Role: model.UserRoleStudent, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	now := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	var created []model.ExamResult
	for i, student := range []string{uid, uid, "ghost"} {
		r, err := s.CreateResult(ctx, model.ExamResult{
			StudentID: student, ExamID: "geo-1",
			StartTime: now, EndTime: now.Add(time.Duration(i) * time.Minute),
			TotalScore: float64(i + 1),
			Answers:    []model.RecordedAnswer{{SectionQuestionID: "sq1", Answer: "Paris", Timestamp: now}},
		})
		if err != nil {
			t.Fatalf("CreateResult: %v", err)
		}
		created = append(created, r)
	}

	got, err := s.GetResult(ctx, created[0].ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(got.Answers) != 1 || got.Answers[0].Answer != "Paris" {
		t.Errorf("answers = %+v", got.Answers)
	}
	if _, err := s.GetResult(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetResult(nope) error = %v", err)
	}

	byStudent, err := s.ResultsByStudent(ctx, uid)
	if err != nil {
		t.Fatalf("ResultsByStudent: %v", err)
	}
	if len(byStudent) != 2 || byStudent[0].ID != created[0].ID {
		t.Errorf("unexpected student results %+v", byStudent)
	}

	participants, err := s.ResultsByExam(ctx, "geo-1")
	if err != nil {
		t.Fatalf("ResultsByExam: %v", err)
	}
	if len(participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(participants))
	}
	if participants[0].Email != "alice@example.com" || participants[0].DisplayName != "Alice Smith" || participants[2].Email != "" {
		t.Errorf("unexpected join %+v", participants)
	}
	if participants[2].Score != 3 {
		t.Errorf("score = %v, want 3", participants[2].Score)
	}
}

func TestUsersAndTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, model.User{Username: "bob", Email: "bob@example.com", Role: model.UserRoleUser, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(ctx, model.User{Username: "bob", Email: "other@example.com"}); err == nil {
		t.Error("expected duplicate username to fail")
	}

	if err := s.ToggleUserActive(ctx, id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	if err := s.SetUserRole(ctx, id, model.UserRoleTeacher); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	u, err := s.GetUserByUsername(ctx, "bob")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v, %v", u, err)
	}
	if u.Active || u.Role != model.UserRoleTeacher {
		t.Errorf("unexpected user %+v", u)
	}
	if err := s.SetUserRole(ctx, "nobody", model.UserRoleStudent); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetUserRole(nobody) error = %v", err)
	}
	if u, err := s.GetUserByEmail(ctx, "none@example.com"); u != nil || err != nil {
		t.Errorf("GetUserByEmail(missing) = %v, %v", u, err)
	}

	if err := s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if revoked, err := s.IsTokenRevoked(ctx, "jti-1"); err != nil || !revoked {
		t.Errorf("IsTokenRevoked = %v, %v", revoked, err)
	}
	if revoked, _ := s.IsTokenRevoked(ctx, "jti-2"); revoked {
		t.Error("unknown token reported revoked")
	}

	if err := s.SetImportedFileHash(ctx, "bank.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash(ctx, "bank.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if h, err := s.GetImportedFileHash(ctx, "bank.json"); err != nil || h != "def" {
		t.Errorf("GetImportedFileHash = %q, %v", h, err)
	}
}
