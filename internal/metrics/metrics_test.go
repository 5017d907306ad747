package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveSubmission(OutcomeScored, 75)
	ObserveSubmission("exam_expired", 0)
	ObserveStatistics("ok")
	ObserveLogin(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`examscore_submissions_total{outcome="scored"}`,
		`examscore_submissions_total{outcome="exam_expired"}`,
		`examscore_submission_percentage_count`,
		`examscore_statistics_requests_total{outcome="ok"}`,
		`examscore_login_attempts_total{status="success"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
