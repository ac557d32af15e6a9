// Package audit logs certification-relevant ledger events in structured JSON
// so they can be shipped to an external audit store.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// LedgerEventType categorizes audit events for filtering and alerting.
type LedgerEventType string

const (
	// EventStatusTransition is logged whenever a batch changes status.
	EventStatusTransition LedgerEventType = "status_transition"
	// EventCertificateConflict is logged when a lab submits a certificate number
	// that is already on file.
	EventCertificateConflict LedgerEventType = "certificate_conflict"
)

// Severity levels carried on every event.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// LedgerEvent is the JSON document emitted for every audited change.
type LedgerEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType LedgerEventType `json:"event_type"`
	BatchID   string          `json:"batch_id"`
	Details   any             `json:"details"`
	Severity  string          `json:"severity"`
}

// TransitionDetails describes a batch status change.
type TransitionDetails struct {
	From              models.BatchStatus `json:"from"`
	To                models.BatchStatus `json:"to"`
	Reason            string             `json:"reason"`
	QualityTestID     string             `json:"quality_test_id,omitempty"`
	CertificateNumber string             `json:"certificate_number,omitempty"`
}

// LedgerAuditor writes audit events to a dedicated "ledger_audit" logger.
// All methods are safe on a nil *LedgerAuditor.
type LedgerAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewLedgerAuditor creates a LedgerAuditor logging under the "ledger_audit" name.
func NewLedgerAuditor(logger *zap.Logger) *LedgerAuditor {
	return &LedgerAuditor{
		logger: logger.Named("ledger_audit"),
		now:    time.Now,
	}
}

// LogStatusTransition records a status change. Moves into rejected are logged
// at WARN so they surface in monitoring.
func (a *LedgerAuditor) LogStatusTransition(t *models.StatusTransition, certificateNumber string) {
	if a == nil || t == nil {
		return
	}

	details := TransitionDetails{
		From:              t.FromStatus,
		To:                t.ToStatus,
		Reason:            t.Reason,
		CertificateNumber: certificateNumber,
	}
	if t.QualityTestID != nil {
		details.QualityTestID = t.QualityTestID.String()
	}

	severity := SeverityInfo
	if t.ToStatus == models.BatchStatusRejected {
		severity = SeverityWarning
	}

	event := a.event(EventStatusTransition, t.BatchID, details, severity)
	fields := []zap.Field{
		zap.String("event_json", event),
		zap.String("batch_id", t.BatchID),
		zap.String("from", string(t.FromStatus)),
		zap.String("to", string(t.ToStatus)),
		zap.String("reason", t.Reason),
		zap.String("severity", severity),
	}
	if certificateNumber != "" {
		fields = append(fields, zap.String("certificate_number", certificateNumber))
	}

	if severity == SeverityWarning {
		a.logger.Warn("Batch status changed", fields...)
		return
	}
	a.logger.Info("Batch status changed", fields...)
}

// LogCertificateConflict records a rejected duplicate certificate submission.
func (a *LedgerAuditor) LogCertificateConflict(batchID, certificateNumber string) {
	if a == nil {
		return
	}

	event := a.event(EventCertificateConflict, batchID, map[string]string{
		"certificate_number": certificateNumber,
	}, SeverityWarning)

	a.logger.Warn("Duplicate certificate rejected",
		zap.String("event_json", event),
		zap.String("batch_id", batchID),
		zap.String("certificate_number", certificateNumber),
		zap.String("severity", SeverityWarning),
	)
}

func (a *LedgerAuditor) event(eventType LedgerEventType, batchID string, details any, severity string) string {
	// Marshaling these known types cannot fail.
	raw, _ := json.Marshal(LedgerEvent{
		Timestamp: a.now().UTC(),
		EventType: eventType,
		BatchID:   batchID,
		Details:   details,
		Severity:  severity,
	})
	return string(raw)
}
