package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/model"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestIssueAndVerify(t *testing.T) {
	s := newTestService(t)
	u := &model.User{ID: "u1", Email: "alice@example.com", Role: model.UserRoleStudent}

	token, issued, err := s.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.ID == "" {
		t.Error("expected a token id")
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "alice@example.com" || claims.Role != model.UserRoleStudent {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ID != issued.ID {
		t.Errorf("token id = %q, want %q", claims.ID, issued.ID)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("ttl = %v, want 1h", got)
	}

	_, second, _ := s.Issue(u)
	if second.ID == issued.ID {
		t.Error("each token should get its own id")
	}
}

func TestVerifyRejects(t *testing.T) {
	s := newTestService(t)
	u := &model.User{ID: "u1", Role: model.UserRoleStudent}
	token, _, err := s.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, _ := NewService("other-secret", time.Hour)
	expired := newTestService(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, _ := expired.Issue(u)

	// Swap in the payload of another token, keeping the original signature.
	otherToken, _, _ := s.Issue(&model.User{ID: "u2", Role: model.UserRoleAdmin})
	parts, otherParts := strings.Split(token, "."), strings.Split(otherToken, ".")
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		svc     *Service
		token   string
		wantErr string
	}{
		{"wrong secret", other, token, "invalid token"},
		{"expired", s, expiredToken, "expired"},
		{"garbage", s, "not.a.token", "invalid token"},
		{"tampered", s, tampered, "invalid token"},
		{"unsigned", s, noneToken, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Verify(tt.token)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewServiceDefaults(t *testing.T) {
	if _, err := NewService("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	s, err := NewService("x", 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if s.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", s.ttl, DefaultTokenTTL)
	}
}

func TestStudentID(t *testing.T) {
	_, err := StudentID(context.Background())
	if !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}

	ctx := model.ContextWithUser(context.Background(), &model.User{ID: "stu-7"})
	id, err := StudentID(ctx)
	if err != nil || id != "stu-7" {
		t.Errorf("StudentID() = %q, %v", id, err)
	}
}
