package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/store"
)

// CreateResult appends a new result and returns it with ID and CreatedAt set.
func (s *Store) CreateResult(ctx context.Context, r model.ExamResult) (model.ExamResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	r.StartTime, r.EndTime = r.StartTime.UTC(), r.EndTime.UTC()

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Collection(colResults).InsertOne(ctx, r); err != nil {
		return model.ExamResult{}, err
	}
	return r, nil
}

// GetResult returns a result with its recorded answers.
func (s *Store) GetResult(ctx context.Context, id string) (*model.ExamResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var r model.ExamResult
	err := s.db.Collection(colResults).FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("result %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResultsByStudent returns all results of a student in insertion order.
// Recorded answers are not loaded.
func (s *Store) ResultsByStudent(ctx context.Context, studentID string) ([]model.ExamResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"answers": 0})
	cur, err := s.db.Collection(colResults).Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.ExamResult](ctx, cur)
}

// ResultsByExam returns one participant row per result of the exam, joined
// with the student's username, display name and email when the user still exists.
func (s *Store) ResultsByExam(ctx context.Context, examID string) ([]model.Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	pipeline := []bson.M{
		{"$match": bson.M{"exam_id": examID}},
		{"$sort": bson.M{"created_at": 1}},
		{
			"$lookup": bson.M{
				"from":         colUsers,
				"localField":   "student_id",
				"foreignField": "_id",
				"as":           "student",
			},
		},
		{
			"$project": bson.M{
				"_id":         0,
				"student_id":  1,
				"total_score": 1,
				"username": bson.M{
					"$ifNull": []any{bson.M{"$arrayElemAt": []any{"$student.username", 0}}, ""},
				},
				"display_name": bson.M{
					"$ifNull": []any{bson.M{"$arrayElemAt": []any{"$student.display_name", 0}}, ""},
				},
				"email": bson.M{
					"$ifNull": []any{bson.M{"$arrayElemAt": []any{"$student.email", 0}}, ""},
				},
			},
		},
	}
	cur, err := s.db.Collection(colResults).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate results of exam %s: %w", examID, err)
	}
	return decodeAll[model.Participant](ctx, cur)
}
