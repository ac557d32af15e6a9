package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func fixedAuditor(logger *zap.Logger) *LedgerAuditor {
	a := NewLedgerAuditor(logger)
	a.now = func() time.Time { return time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC) }
	return a
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) LedgerEvent {
	t.Helper()
	raw, ok := entry.ContextMap()["event_json"].(string)
	require.True(t, ok, "event_json field missing")

	var event LedgerEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestNewLedgerAuditor_NamedLogger(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	NewLedgerAuditor(logger).LogCertificateConflict("ASH-001", "CERT-001")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "ledger_audit", recorded.All()[0].LoggerName)
}

func TestLogStatusTransition(t *testing.T) {
	testID := uuid.New()

	tests := []struct {
		name      string
		to        models.BatchStatus
		wantLevel zapcore.Level
		wantSev   string
	}{
		{name: "completed is info", to: models.BatchStatusCompleted, wantLevel: zapcore.InfoLevel, wantSev: SeverityInfo},
		{name: "rejected is warning", to: models.BatchStatusRejected, wantLevel: zapcore.WarnLevel, wantSev: SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			fixedAuditor(logger).LogStatusTransition(&models.StatusTransition{
				BatchID:       "ASH-001",
				FromStatus:    models.BatchStatusQualityTesting,
				ToStatus:      tt.to,
				QualityTestID: &testID,
				Reason:        models.TransitionReasonQualityTest,
			}, "CERT-001")

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantLevel, logs[0].Level)

			fields := logs[0].ContextMap()
			assert.Equal(t, "ASH-001", fields["batch_id"])
			assert.Equal(t, string(tt.to), fields["to"])
			assert.Equal(t, tt.wantSev, fields["severity"])

			event := decodeEvent(t, logs[0])
			assert.Equal(t, EventStatusTransition, event.EventType)
			assert.Equal(t, "ASH-001", event.BatchID)
			assert.Equal(t, tt.wantSev, event.Severity)
			assert.True(t, event.Timestamp.Equal(time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)))

			details, ok := event.Details.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, testID.String(), details["quality_test_id"])
			assert.Equal(t, "CERT-001", details["certificate_number"])
		})
	}
}

func TestLogStatusTransition_OperatorMoveHasNoTest(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	fixedAuditor(logger).LogStatusTransition(&models.StatusTransition{
		BatchID:    "TUL-001",
		FromStatus: models.BatchStatusProcessing,
		ToStatus:   models.BatchStatusQualityTesting,
		Reason:     models.TransitionReasonOperator,
	}, "")

	require.Equal(t, 1, recorded.Len())
	details := decodeEvent(t, recorded.All()[0]).Details.(map[string]any)
	_, hasTest := details["quality_test_id"]
	assert.False(t, hasTest)
	assert.Equal(t, models.TransitionReasonOperator, details["reason"])
}

func TestLogCertificateConflict(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	fixedAuditor(logger).LogCertificateConflict("BRA-002", "CERT-009")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "CERT-009", logs[0].ContextMap()["certificate_number"])

	event := decodeEvent(t, logs[0])
	assert.Equal(t, EventCertificateConflict, event.EventType)
	assert.Equal(t, "BRA-002", event.BatchID)
}

func TestLedgerAuditor_NilSafe(t *testing.T) {
	var a *LedgerAuditor
	a.LogStatusTransition(&models.StatusTransition{BatchID: "ASH-001"}, "")
	a.LogCertificateConflict("ASH-001", "CERT-001")

	logger, recorded := setupTestLogger(t)
	NewLedgerAuditor(logger).LogStatusTransition(nil, "")
	assert.Equal(t, 0, recorded.Len())
}
