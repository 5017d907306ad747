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

// CreateUser inserts a new user and returns its id.
func (s *Store) CreateUser(ctx context.Context, u model.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Collection(colUsers).InsertOne(ctx, u); err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return "", err
	}
	slog.Info("created user", "id", u.ID, "username", u.Username, "role", u.Role)
	return u.ID, nil
}

func (s *Store) getUser(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var u model.User
	err := s.db.Collection(colUsers).FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, bson.M{"email": email})
}

// GetUserByUsername returns a user by username, or nil if none exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, bson.M{"username": username})
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, bson.M{"_id": id})
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "username", Value: 1}})
	cur, err := s.db.Collection(colUsers).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.User](ctx, cur)
}

func (s *Store) updateUser(ctx context.Context, id string, update any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := s.db.Collection(colUsers).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, []bson.M{{"$set": bson.M{"active": bson.M{"$not": "$active"}}}})
}

// SetUserRole changes the role of a user.
func (s *Store) SetUserRole(ctx context.Context, id string, role model.UserRole) error {
	return s.updateUser(ctx, id, bson.M{"$set": bson.M{"role": role}})
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	n, err := s.db.Collection(colUsers).CountDocuments(ctx, bson.M{})
	return int(n), err
}
