package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examscore/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested exam, question or result does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		grp TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answer_options (
		question_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (question_id, position),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		max_attempts INTEGER,
		duration INTEGER,
		max_score REAL,
		pass_score REAL,
		auto_distribute_score INTEGER NOT NULL DEFAULT 0,
		show_student_result INTEGER NOT NULL DEFAULT 0,
		display_results TEXT NOT NULL DEFAULT '',
		question_order TEXT NOT NULL DEFAULT '',
		questions_per_page INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_sections (
		exam_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (exam_id, position),
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS section_questions (
		exam_id TEXT NOT NULL,
		id TEXT NOT NULL,
		section_position INTEGER NOT NULL,
		position INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 1,
		PRIMARY KEY (exam_id, id),
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE
	);

	-- Results reference exams by id only; deleting an exam keeps its results.
	CREATE TABLE IF NOT EXISTS exam_results (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		total_score REAL NOT NULL,
		percentage_score REAL NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exam_results_student ON exam_results(student_id);
	CREATE INDEX IF NOT EXISTS idx_exam_results_exam ON exam_results(exam_id);

	CREATE TABLE IF NOT EXISTS result_answers (
		result_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		section_question_id TEXT NOT NULL,
		answer TEXT NOT NULL,
		answered_at DATETIME NOT NULL,
		PRIMARY KEY (result_id, position),
		FOREIGN KEY (result_id) REFERENCES exam_results(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		id TEXT PRIMARY KEY,
		expires_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a question and its options.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO questions (id, text, category, grp, created_at) VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.Text, q.Category, q.Group, time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	for i, o := range q.Answers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO answer_options (question_id, position, text, is_correct) VALUES (?, ?, ?, ?)`,
			q.ID, i, o.Text, o.IsCorrect,
		)
		if err != nil {
			return "", err
		}
	}
	return q.ID, tx.Commit()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	qs, err := s.GetQuestions(ctx, []string{id})
	if err != nil {
		return model.Question{}, err
	}
	q, ok := qs[id]
	if !ok {
		return model.Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, nil
}

// GetQuestions returns the questions with the given ids keyed by id.
// Missing ids are absent from the map.
func (s *Store) GetQuestions(ctx context.Context, ids []string) (map[string]model.Question, error) {
	out := make(map[string]model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, category, grp FROM questions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Category, &q.Group); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := s.db.QueryContext(ctx,
		`SELECT question_id, text, is_correct FROM answer_options
		 WHERE question_id IN (`+placeholders+`) ORDER BY question_id, position`, args...)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()
	for optRows.Next() {
		var qid string
		var o model.AnswerOption
		if err := optRows.Scan(&qid, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		q := out[qid]
		q.Answers = append(q.Answers, o)
		out[qid] = q
	}
	return out, optRows.Err()
}

// QuestionIDs returns the ids of all stored questions.
func (s *Store) QuestionIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM questions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// InsertExam stores an exam with its sections and section questions.
func (s *Store) InsertExam(ctx context.Context, e model.Exam) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exams (id, name, description, start_date, end_date, max_attempts, duration,
			max_score, pass_score, auto_distribute_score, show_student_result, display_results,
			question_order, questions_per_page, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, e.StartDate.UTC(), e.EndDate.UTC(), e.MaxAttempts, e.Duration,
		e.MaxScore, e.PassScore, e.AutoDistributeScore, e.ShowStudentResult, e.DisplayResults,
		e.QuestionOrder, e.QuestionsPerPage, now, now,
	)
	if err != nil {
		return "", err
	}
	for si, sec := range e.Sections {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exam_sections (exam_id, position, title, description) VALUES (?, ?, ?, ?)`,
			e.ID, si, sec.Title, sec.Description,
		)
		if err != nil {
			return "", err
		}
		for qi, sq := range sec.Questions {
			if sq.ID == "" {
				sq.ID = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO section_questions (exam_id, id, section_position, position, question_id, score)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, sq.ID, si, qi, sq.QuestionID, sq.Score,
			)
			if err != nil {
				return "", err
			}
		}
	}
	return e.ID, tx.Commit()
}

// ExamIDs returns the ids of all stored exams.
func (s *Store) ExamIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM exams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// GetExam returns an exam without question content attached.
func (s *Store) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, start_date, end_date, max_attempts, duration, max_score,
			pass_score, auto_distribute_score, show_student_result, display_results, question_order,
			questions_per_page, created_at, updated_at
		 FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.StartDate, &e.EndDate, &e.MaxAttempts, &e.Duration,
		&e.MaxScore, &e.PassScore, &e.AutoDistributeScore, &e.ShowStudentResult, &e.DisplayResults,
		&e.QuestionOrder, &e.QuestionsPerPage, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	secRows, err := s.db.QueryContext(ctx,
		`SELECT title, description FROM exam_sections WHERE exam_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer secRows.Close()
	for secRows.Next() {
		var sec model.ExamSection
		if err := secRows.Scan(&sec.Title, &sec.Description); err != nil {
			return nil, err
		}
		e.Sections = append(e.Sections, sec)
	}
	if err := secRows.Err(); err != nil {
		return nil, err
	}

	sqRows, err := s.db.QueryContext(ctx,
		`SELECT id, section_position, question_id, score FROM section_questions
		 WHERE exam_id = ? ORDER BY section_position, position`, id)
	if err != nil {
		return nil, err
	}
	defer sqRows.Close()
	for sqRows.Next() {
		var sq model.SectionQuestion
		var pos int
		if err := sqRows.Scan(&sq.ID, &pos, &sq.QuestionID, &sq.Score); err != nil {
			return nil, err
		}
		if pos < 0 || pos >= len(e.Sections) {
			return nil, fmt.Errorf("exam %s: section question %s points at missing section %d", id, sq.ID, pos)
		}
		e.Sections[pos].Questions = append(e.Sections[pos].Questions, sq)
	}
	return &e, sqRows.Err()
}

// GetResolvedExam returns an exam with each section question's Question attached.
// Section questions whose question no longer exists keep a nil Question.
func (s *Store) GetResolvedExam(ctx context.Context, id string) (*model.Exam, error) {
	e, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.GetQuestions(ctx, e.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("resolve questions of exam %s: %w", id, err)
	}
	for si := range e.Sections {
		for qi := range e.Sections[si].Questions {
			sq := &e.Sections[si].Questions[qi]
			if q, ok := questions[sq.QuestionID]; ok {
				sq.Question = &q
			}
		}
	}
	return e, nil
}

// DeleteExam removes an exam and its structure. Results are kept.
func (s *Store) DeleteExam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM section_questions WHERE exam_id = ?`,
		`DELETE FROM exam_sections WHERE exam_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
