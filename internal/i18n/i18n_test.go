package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "ErrExamExpired"); got != "The exam is closed for submissions." {
		t.Errorf("T(ErrExamExpired) = %q", got)
	}
	if got := T(ctx, "ExamDeleted"); got != "exam deleted" {
		t.Errorf("T(ExamDeleted) = %q, want 'exam deleted'", got)
	}
}

func TestTranslateVietnamese(t *testing.T) {
	ctx := initLang(t, "vi")

	if got := T(ctx, "LogoutSuccess"); got != "Đăng xuất thành công." {
		t.Errorf("T(LogoutSuccess) = %q, want 'Đăng xuất thành công.'", got)
	}
	if got := T(ctx, "ExamDeleted"); got != "bài thi đã bị xóa" {
		t.Errorf("T(ExamDeleted) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "ImportSummary", 1, map[string]any{"File": "bank.json"})
	if got1 != "Imported 1 item from bank.json." {
		t.Errorf("Tp(ImportSummary, 1) = %q", got1)
	}
	got5 := Tp(ctx, "ImportSummary", 5, map[string]any{"File": "bank.json"})
	if got5 != "Imported 5 items from bank.json." {
		t.Errorf("Tp(ImportSummary, 5) = %q", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "UserCreated", map[string]any{"Username": "alice"})
	if got != "User alice created." {
		t.Errorf("Td(UserCreated) = %q, want 'User alice created.'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitRejectsBadTag(t *testing.T) {
	if err := Init("not a language"); err == nil {
		t.Error("expected error for invalid language tag")
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tests := []struct {
		accept   string
		wantLang string
		wantMsg  string
	}{
		{"vi-VN,vi;q=0.9,en;q=0.8", "vi", "Lỗi server."},
		{"en-US", "en", "Internal server error."},
		{"fr-FR", "en", "Internal server error."},
		{"", "en", "Internal server error."},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "ErrServerError")
			}))
			req := httptest.NewRequest("GET", "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
			if lang := rec.Header().Get("Content-Language"); lang != tt.wantLang {
				t.Errorf("Content-Language = %q, want %q", lang, tt.wantLang)
			}
		})
	}
}
