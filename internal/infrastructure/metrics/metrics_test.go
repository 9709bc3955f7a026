package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/validation"
)

func TestOutcome(t *testing.T) {
	findings := validation.NewReport()
	findings.DuplicateIDs["Customers"] = []string{"2"}

	assert.Equal(t, OutcomeClean, Outcome(validation.NewReport(), nil))
	assert.Equal(t, OutcomeClean, Outcome(nil, nil))
	assert.Equal(t, OutcomeFindings, Outcome(findings, nil))
	assert.Equal(t, OutcomeRejected, Outcome(findings, apperror.NewBusinessRule(apperror.CodeDuplicateIDs, "dups")))
	assert.Equal(t, OutcomeError, Outcome(nil, errors.New("boom")))
}

func TestHandler_ExposesRecordedMetrics(t *testing.T) {
	report := validation.NewReport()
	report.DuplicateIDs["Customers"] = []string{"2", "3"}
	Recorder{}.ObserveRun("validate", report, nil, 20*time.Millisecond)
	ObserveHTTP("POST", "/api/v1/validate", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `sheetbridge_engine_runs_total{op="validate",outcome="findings"}`)
	assert.Contains(t, text, `sheetbridge_engine_findings_total{category="duplicate_ids"}`)
	assert.Contains(t, text, `sheetbridge_http_requests_total{method="POST",route="/api/v1/validate",status="200"}`)
}
