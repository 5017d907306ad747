package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetImportedFileHash records the content hash of an imported bank file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(colImportedFiles).UpdateOne(ctx,
		bson.M{"_id": path},
		bson.M{"$set": bson.M{"hash": hash, "imported_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetImportedFileHash returns the recorded hash for path.
// Returns empty string and nil error if the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var doc struct {
		Hash string `bson:"hash"`
	}
	err := s.db.Collection(colImportedFiles).FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	return doc.Hash, err
}

// RevokeToken marks a token id as revoked until it would have expired anyway.
// The TTL index on expires_at lets the server drop stale entries by itself.
func (s *Store) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(colRevokedTokens).UpdateOne(ctx,
		bson.M{"_id": tokenID},
		bson.M{"$setOnInsert": bson.M{"expires_at": expiresAt.UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// IsTokenRevoked reports whether the token id was revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	n, err := s.db.Collection(colRevokedTokens).CountDocuments(ctx, bson.M{"_id": tokenID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CleanupExpiredRevocations removes revocations of tokens that have expired.
func (s *Store) CleanupExpiredRevocations(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(colRevokedTokens).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	return err
}
