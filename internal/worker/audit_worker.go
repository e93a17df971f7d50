package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/observability"
)

// AuditWorker records every session lifecycle event in the log and metrics.
type AuditWorker struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuditWorker creates the worker.
func NewAuditWorker(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{dispatcher: dispatcher, metrics: metrics, logger: logger}
}

// StartAuditWorker registers the audit handlers.
func StartAuditWorker(w *AuditWorker) {
	if w == nil || w.dispatcher == nil {
		return
	}
	w.RegisterHandlers()
}

// RegisterHandlers subscribes to events.
func (w *AuditWorker) RegisterHandlers() {
	w.dispatcher.Subscribe(events.EventLoggedIn, w.handleLoggedIn)
	w.dispatcher.Subscribe(events.EventLoggedOut, w.record)
	w.dispatcher.Subscribe(events.EventSessionExpired, w.handleSessionExpired)
	w.dispatcher.Subscribe(events.EventCrossTabLogout, w.handleCrossTabLogout)
	w.dispatcher.Subscribe(events.EventRequestRejected, w.record)
}

func (w *AuditWorker) handleLoggedIn(ctx context.Context, event events.Event) error {
	w.logger.Info("LoggedIn", zap.String("role", event.Role.String()), zap.String("landing", event.Path))
	return w.record(ctx, event)
}

func (w *AuditWorker) handleSessionExpired(ctx context.Context, event events.Event) error {
	w.logger.Warn("SessionExpired", zap.String("reason", event.Reason), zap.String("role", event.Role.String()))
	return w.record(ctx, event)
}

func (w *AuditWorker) handleCrossTabLogout(ctx context.Context, event events.Event) error {
	w.logger.Info("CrossTabLogout", zap.String("key", event.Reason))
	return w.record(ctx, event)
}

func (w *AuditWorker) record(_ context.Context, event events.Event) error {
	w.metrics.RecordSessionEvent(string(event.Type), event.Reason)
	w.logger.Debug("session event",
		zap.String("id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("reason", event.Reason),
		zap.String("path", event.Path),
		zap.Time("at", event.Timestamp),
	)
	return nil
}
