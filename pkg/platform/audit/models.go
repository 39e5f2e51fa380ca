package audit

import (
	"time"
)

// EventCategory classifies events by who consumes them.
type EventCategory string

const (
	// CategoryIntegrity covers anomaly detection and resolution. These feed the
	// authority dashboard and must reach every sink.
	CategoryIntegrity EventCategory = "integrity"

	// CategoryWorkflow covers request queue and status movement.
	CategoryWorkflow EventCategory = "workflow"

	// CategorySecurity covers operator authentication.
	CategorySecurity EventCategory = "security"
)

// Event is emitted by orchestrators on core state changes. It stays
// transport-agnostic so the store, websocket hub and Kafka sink can fan out.
type Event struct {
	Category   EventCategory `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
	Action     string        `json:"action"`
	EntityType string        `json:"entity_type,omitempty"`
	EntityID   string        `json:"entity_id,omitempty"`
	// Subject is the booth, constituency or origin the event concerns.
	Subject   string `json:"subject,omitempty"`
	Tier      string `json:"tier,omitempty"`
	Score     int    `json:"score,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	// Payload carries the snapshot the live dashboard renders.
	Payload any `json:"payload,omitempty"`
}

type AuditEvent string

const (
	// Risk engine
	EventRequestScored        AuditEvent = "request_scored"
	EventFlagRaised           AuditEvent = "flag_raised"
	EventFlagResolved         AuditEvent = "flag_resolved"
	EventBoothRiskChanged     AuditEvent = "booth_risk_changed"
	EventCertificateGenerated AuditEvent = "certificate_generated"
	EventCountMismatchAlert   AuditEvent = "count_mismatch_alert"

	// Workflow
	EventRequestStatusUpdated AuditEvent = "request_status_updated"
	EventRequestQueueUpdated  AuditEvent = "request_queue_updated"
	EventForm17AUploaded      AuditEvent = "form17a_uploaded"
	EventForm17CUploaded      AuditEvent = "form17c_uploaded"

	// Operators
	EventOperatorLogin       AuditEvent = "operator_login"
	EventOperatorLoginFailed AuditEvent = "operator_login_failed"
	EventOperatorLockedOut   AuditEvent = "operator_locked_out"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRequestScored:        CategoryIntegrity,
	EventFlagRaised:           CategoryIntegrity,
	EventFlagResolved:         CategoryIntegrity,
	EventBoothRiskChanged:     CategoryIntegrity,
	EventCertificateGenerated: CategoryIntegrity,
	EventCountMismatchAlert:   CategoryIntegrity,

	EventRequestStatusUpdated: CategoryWorkflow,
	EventRequestQueueUpdated:  CategoryWorkflow,
	EventForm17AUploaded:      CategoryWorkflow,
	EventForm17CUploaded:      CategoryWorkflow,

	EventOperatorLogin:       CategorySecurity,
	EventOperatorLoginFailed: CategorySecurity,
	EventOperatorLockedOut:   CategorySecurity,
}

// Category returns the EventCategory for this event.
// Unknown events default to CategoryWorkflow.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryWorkflow
}
