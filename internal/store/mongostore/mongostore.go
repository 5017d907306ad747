// Package mongostore keeps questions, exams, results and accounts in MongoDB.
// It offers the same method set as the SQLite store and reports misses with
// store.ErrNotFound.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/store"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "examscore"

const opTimeout = 5 * time.Second

const (
	colQuestions     = "questions"
	colExams         = "exams"
	colResults       = "exam_results"
	colUsers         = "users"
	colImportedFiles = "imported_files"
	colRevokedTokens = "revoked_tokens"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri, pings the server and ensures indexes exist.
func New(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	slog.Info("connected to mongo", "database", database)
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colResults: {
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "exam_id", Value: 1}}},
		},
		colRevokedTokens: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
	}
	return nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	var out []T
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

func (s *Store) ids(ctx context.Context, col string) (map[string]bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(col).Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll[struct {
		ID string `bson:"_id"`
	}](ctx, cur)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		ids[d.ID] = true
	}
	return ids, nil
}

// InsertQuestion stores a question with its options.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Collection(colQuestions).InsertOne(ctx, q); err != nil {
		return "", err
	}
	return q.ID, nil
}

// GetQuestions returns the questions with the given ids keyed by id.
// Missing ids are absent from the map.
func (s *Store) GetQuestions(ctx context.Context, ids []string) (map[string]model.Question, error) {
	out := make(map[string]model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(colQuestions).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	qs, err := decodeAll[model.Question](ctx, cur)
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		out[q.ID] = q
	}
	return out, nil
}

// QuestionIDs returns the ids of all stored questions.
func (s *Store) QuestionIDs(ctx context.Context) (map[string]bool, error) {
	return s.ids(ctx, colQuestions)
}

// InsertExam stores an exam with its sections embedded.
func (s *Store) InsertExam(ctx context.Context, e model.Exam) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	e.StartDate, e.EndDate = e.StartDate.UTC(), e.EndDate.UTC()
	e.Sections = append([]model.ExamSection(nil), e.Sections...)
	for si := range e.Sections {
		qs := append([]model.SectionQuestion(nil), e.Sections[si].Questions...)
		for qi := range qs {
			if qs[qi].ID == "" {
				qs[qi].ID = uuid.NewString()
			}
		}
		e.Sections[si].Questions = qs
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Collection(colExams).InsertOne(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// ExamIDs returns the ids of all stored exams.
func (s *Store) ExamIDs(ctx context.Context) (map[string]bool, error) {
	return s.ids(ctx, colExams)
}

// GetExam returns an exam without question content attached.
func (s *Store) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var e model.Exam
	err := s.db.Collection(colExams).FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("exam %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
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

// DeleteExam removes an exam. Results are kept.
func (s *Store) DeleteExam(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := s.db.Collection(colExams).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("exam %s: %w", id, store.ErrNotFound)
	}
	return nil
}
