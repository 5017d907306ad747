package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/auth"
	appI18n "github.com/pavelanni/examscore/internal/i18n"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/scoring"
	"github.com/pavelanni/examscore/internal/stats"
)

// handleGetExam returns the exam with its questions for taking it. The
// answer key is stripped.
func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	exam, err := h.store.GetResolvedExam(r.Context(), examID)
	if err != nil {
		writeError(w, r, notFoundOr(err, "exam", examID))
		return
	}
	writeJSON(w, http.StatusOK, exam.WithoutAnswerKey())
}

type submitRequest struct {
	Answers   []model.SubmittedAnswer `json:"answers"`
	StartTime string                  `json:"startTime"`
	EndTime   string                  `json:"endTime"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	studentID, err := auth.StudentID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.engine.Submit(r.Context(), scoring.Submission{
		ExamID:    chi.URLParam(r, "examID"),
		StudentID: studentID,
		Answers:   req.Answers,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	studentID, err := auth.StudentID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeResults(w, r, studentID)
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	h.writeResults(w, r, chi.URLParam(r, "studentID"))
}

func (h *Handler) writeResults(w http.ResponseWriter, r *http.Request, studentID string) {
	summaries, err := h.engine.ListResults(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range summaries {
		if summaries[i].Status == model.ResultDeleted {
			summaries[i].ExamName = appI18n.T(r.Context(), "ExamDeleted")
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleGetResult returns one result. Students only see their own.
func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	result, err := h.engine.Result(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.StudentID != user.ID && !hasRole(user, model.UserRoleTeacher, model.UserRoleAdmin) {
		writeError(w, r, apperr.New(apperr.KindForbidden, "result belongs to another student"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Compute(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Display(*st))
}
