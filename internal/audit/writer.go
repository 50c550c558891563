package audit

import (
	"context"
	"time"

	"github.com/nerrad567/comfortclick-bridge/internal/entity"
)

// Command sources.
const (
	SourceAPI    = "api"
	SourceMQTT   = "mqtt"
	SourceSystem = "system"
)

// writeTimeout bounds one audit insert.
const writeTimeout = 5 * time.Second

type sourceKey struct{}

// WithSource tags ctx with the surface a command arrived on.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the command source, SourceSystem when untagged.
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceSystem
}

// Logger is the logging surface the writer needs.
type Logger interface {
	Warn(msg string, args ...any)
}

// Writer records every panel write passing through it. It wraps the panel
// client as an entity.Writer, so the entity id comes from the context set by
// entity.Registry.Dispatch.
type Writer struct {
	next   entity.Writer
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewWriter wraps next. A nil logger discards audit failures.
func NewWriter(next entity.Writer, repo Repository, logger Logger) *Writer {
	return &Writer{next: next, repo: repo, logger: logger, now: time.Now}
}

// SetValue forwards the write and records it with its outcome. Audit
// failures are logged and never change the write result.
func (w *Writer) SetValue(ctx context.Context, name string, value any) error {
	err := w.next.SetValue(ctx, name, value)

	rec := &AuditLog{
		Action:     ActionCommand,
		EntityType: EntityTypePanel,
		Source:     SourceFromContext(ctx),
		Details: map[string]any{
			"identifier": name,
			"value":      value,
		},
		CreatedAt: w.now(),
	}
	if id, ok := entity.EntityIDFromContext(ctx); ok {
		rec.EntityType = EntityTypeEntity
		rec.EntityID = id
	}
	if err != nil {
		rec.Error = err.Error()
	}
	w.record(ctx, rec)

	return err
}

// RecordSession records a coordinator session event such as "connect" or
// "setup_failed".
func (w *Writer) RecordSession(ctx context.Context, event string, err error) {
	rec := &AuditLog{
		Action:     ActionSession,
		EntityType: EntityTypePanel,
		Source:     SourceSystem,
		Details:    map[string]any{"event": event},
		CreatedAt:  w.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	w.record(ctx, rec)
}

// record inserts rec even when ctx is already cancelled.
func (w *Writer) record(ctx context.Context, rec *AuditLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := w.repo.Create(ctx, rec); err != nil && w.logger != nil {
		w.logger.Warn("audit record failed", "action", rec.Action, "entity_id", rec.EntityID, "error", err)
	}
}
