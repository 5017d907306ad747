// Package bank loads question banks and exams from JSON documents.
package bank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/model"
)

// Repository is the storage an import writes to.
type Repository interface {
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
	QuestionIDs(ctx context.Context) (map[string]bool, error)
	ExamIDs(ctx context.Context) (map[string]bool, error)
	InsertQuestion(ctx context.Context, q model.Question) (string, error)
	InsertExam(ctx context.Context, e model.Exam) (string, error)
}

// Summary reports what an import did.
type Summary struct {
	Name             string `json:"name"`
	Unchanged        bool   `json:"unchanged"`
	QuestionsAdded   int    `json:"questionsAdded"`
	QuestionsSkipped int    `json:"questionsSkipped"`
	ExamsAdded       int    `json:"examsAdded"`
	ExamsSkipped     int    `json:"examsSkipped"`
}

// Added returns the number of inserted questions and exams.
func (s Summary) Added() int {
	return s.QuestionsAdded + s.ExamsAdded
}

// Import parses data as a BankImport and stores it under name.
//
// A document whose hash matches the recorded one is skipped. A changed
// document is imported again, but questions and exams whose ids already
// exist are left untouched so that stored results keep scoring against the
// content they were taken with.
func Import(ctx context.Context, repo Repository, name string, data []byte) (Summary, error) {
	sum := Summary{Name: name}
	hash := sha256sum(data)

	storedHash, err := repo.GetImportedFileHash(ctx, name)
	if err != nil {
		return sum, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if storedHash == hash {
		slog.Info("bank file unchanged, skipping", "name", name)
		sum.Unchanged = true
		return sum, nil
	}

	var doc model.BankImport
	if err := json.Unmarshal(data, &doc); err != nil {
		return sum, apperr.InvalidInput("parse %s: %v", name, err)
	}
	for i := range doc.Exams {
		doc.Exams[i].ApplyDefaults()
	}

	known, err := repo.QuestionIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list questions: %w", err)
	}
	if err := doc.Validate(known); err != nil {
		return sum, apperr.InvalidInput("validate %s: %v", name, err)
	}
	examIDs, err := repo.ExamIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list exams: %w", err)
	}

	for _, q := range doc.Questions {
		if known[q.ID] {
			slog.Warn("question already exists, keeping stored version", "question_id", q.ID, "name", name)
			sum.QuestionsSkipped++
			continue
		}
		if _, err := repo.InsertQuestion(ctx, q); err != nil {
			return sum, fmt.Errorf("insert question %s from %s: %w", q.ID, name, err)
		}
		known[q.ID] = true
		sum.QuestionsAdded++
	}
	for _, e := range doc.Exams {
		if examIDs[e.ID] {
			slog.Warn("exam already exists, keeping stored version", "exam_id", e.ID, "name", name)
			sum.ExamsSkipped++
			continue
		}
		if _, err := repo.InsertExam(ctx, e); err != nil {
			return sum, fmt.Errorf("insert exam %s from %s: %w", e.ID, name, err)
		}
		examIDs[e.ID] = true
		sum.ExamsAdded++
	}

	if err := repo.SetImportedFileHash(ctx, name, hash); err != nil {
		return sum, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported bank file",
		"name", name,
		"questions", sum.QuestionsAdded,
		"exams", sum.ExamsAdded,
		"skipped", sum.QuestionsSkipped+sum.ExamsSkipped,
	)
	return sum, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
