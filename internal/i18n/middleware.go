package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware picks the response language from Accept-Language, falling back
// to lang, and injects the matching localizer into every request context.
func Middleware(lang string) func(http.Handler) http.Handler {
	matcher := language.NewMatcher(Languages())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag, _ := language.MatchStrings(matcher, r.Header.Get("Accept-Language"), lang)
			base, _ := tag.Base()
			w.Header().Set("Content-Language", base.String())
			ctx := WithLocalizer(r.Context(), NewLocalizer(base.String(), lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
