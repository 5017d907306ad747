package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examscore/internal/model"
)

// CreateResult appends a new result with its recorded answers and returns it
// with ID and CreatedAt set.
func (s *Store) CreateResult(ctx context.Context, r model.ExamResult) (model.ExamResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ExamResult{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exam_results (id, student_id, exam_id, start_time, end_time, total_score, percentage_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID, r.ExamID, r.StartTime.UTC(), r.EndTime.UTC(), r.TotalScore, r.PercentageScore, r.CreatedAt,
	)
	if err != nil {
		return model.ExamResult{}, err
	}
	for i, a := range r.Answers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO result_answers (result_id, position, section_question_id, answer, answered_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ID, i, a.SectionQuestionID, a.Answer, a.Timestamp.UTC(),
		)
		if err != nil {
			return model.ExamResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.ExamResult{}, err
	}
	return r, nil
}

// GetResult returns a result with its recorded answers.
func (s *Store) GetResult(ctx context.Context, id string) (*model.ExamResult, error) {
	var r model.ExamResult
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, exam_id, start_time, end_time, total_score, percentage_score, created_at
		 FROM exam_results WHERE id = ?`, id,
	).Scan(&r.ID, &r.StudentID, &r.ExamID, &r.StartTime, &r.EndTime, &r.TotalScore, &r.PercentageScore, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT section_question_id, answer, answered_at FROM result_answers
		 WHERE result_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.RecordedAnswer
		if err := rows.Scan(&a.SectionQuestionID, &a.Answer, &a.Timestamp); err != nil {
			return nil, err
		}
		r.Answers = append(r.Answers, a)
	}
	return &r, rows.Err()
}

// ResultsByStudent returns all results of a student in insertion order.
// Recorded answers are not loaded.
func (s *Store) ResultsByStudent(ctx context.Context, studentID string) ([]model.ExamResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, exam_id, start_time, end_time, total_score, percentage_score, created_at
		 FROM exam_results WHERE student_id = ? ORDER BY rowid`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ExamResult
	for rows.Next() {
		var r model.ExamResult
		if err := rows.Scan(&r.ID, &r.StudentID, &r.ExamID, &r.StartTime, &r.EndTime, &r.TotalScore, &r.PercentageScore, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResultsByExam returns one participant row per result of the exam, joined
// with the student's username, display name and email when the user still exists.
func (s *Store) ResultsByExam(ctx context.Context, examID string) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.student_id, COALESCE(u.username, ''), COALESCE(u.display_name, ''), COALESCE(u.email, ''), r.total_score
		 FROM exam_results r LEFT JOIN users u ON u.id = r.student_id
		 WHERE r.exam_id = ? ORDER BY r.rowid`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.StudentID, &p.Username, &p.DisplayName, &p.Email, &p.Score); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}
