package lending

import (
	"context"
	"time"
)

// ContextualLogger interface for context-aware logging with automatic trace
// correlation. Implement it with any logging backend that supports
// context-based correlation (the oteladapters package ships an OpenTelemetry
// slog bridge implementation).
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting engine performance and operational
// metrics. Implementations map the calls onto their backend's instruments
// (histogram, counter, gauge).
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Metric names emitted by the BorrowingService.
const (
	BorrowDecisionsMetric    = "lending_borrow_decisions_total"
	BorrowDurationMetric     = "lending_borrow_duration"
	BorrowRetriesMetric      = "lending_borrow_retries_total"
	BorrowRetryDelayMetric   = "lending_borrow_retry_delay"
	MaxRetriesReachedMetric  = "lending_borrow_max_retries_reached_total"
	ExtensionDecisionsMetric = "lending_extension_decisions_total"
	ReturnDecisionsMetric    = "lending_return_decisions_total"
)

// Metric label keys.
const (
	LabelOutcome   = "outcome"
	LabelOperation = "operation"
)

// Metric label values for LabelOutcome.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Structured log attribute keys.
const (
	logAttrError      = "error"
	logAttrReaderID   = "reader_id"
	logAttrBookID     = "book_id"
	logAttrLoanID     = "loan_id"
	logAttrStaffID    = "staff_id"
	logAttrRequestID  = "request_id"
	logAttrBatchSize  = "batch_size"
	logAttrReason     = "reason"
	logAttrDurationMS = "duration_ms"
)

func outcomeLabels(operation string, outcome string) map[string]string {
	return map[string]string{
		LabelOperation: operation,
		LabelOutcome:   outcome,
	}
}
