package audit

import (
	"context"
	"log/slog"

	"rollguard/pkg/attrs"
	"rollguard/pkg/requestcontext"
)

// Emitter is the narrow publishing contract the helpers below need.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogAudit writes a structured audit log line and emits the matching event.
// Well-known keys in attrList (entity_type, entity_id, subject, tier, score,
// reason, actor_id) are lifted into the event; payload rides along for the
// live dashboard.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Emitter, event AuditEvent, payload any, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}

	actor := attrs.ExtractString(attrList, "actor_id")
	if actor == "" {
		actor = requestcontext.Operator(ctx)
	}
	err := publisher.Emit(ctx, Event{
		Category:   event.Category(),
		Timestamp:  requestcontext.Now(ctx),
		Action:     string(event),
		EntityType: attrs.ExtractString(attrList, "entity_type"),
		EntityID:   attrs.ExtractString(attrList, "entity_id"),
		Subject:    attrs.ExtractString(attrList, "subject"),
		Tier:       attrs.ExtractString(attrList, "tier"),
		Score:      attrs.ExtractInt(attrList, "score"),
		Reason:     attrs.ExtractString(attrList, "reason"),
		RequestID:  requestID,
		ActorID:    actor,
		Payload:    payload,
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
