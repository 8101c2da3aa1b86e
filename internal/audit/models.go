// Package audit formats and ships structured audit events to an injected
// logging collaborator. Events are transport-agnostic so sinks and stores can
// fan out; payloads carry structural metadata only, never protected health
// information (the constructor of an event owns that exclusion, pkg/attrs
// provides the shared sanitizer).
package audit

import (
	"time"

	"clinicore/pkg/domain"
)

// Severity classifies an event for sink routing.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Result records how the audited operation ended.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailure Result = "FAILURE"
	ResultDenied  Result = "DENIED"
)

// EventContext identifies who did what where; it is attached verbatim to the
// emitted log record.
type EventContext struct {
	TenantID  domain.TenantID
	ActorID   domain.ClinicianID
	TraceID   string
	Timestamp time.Time
}

// Event is the unit the emitter ships. Payload must be pre-sanitized by the
// caller.
type Event struct {
	Context  EventContext
	Type     EventType
	Severity Severity
	Result   Result
	Payload  map[string]any
}

// EventType names the audited action.
type EventType string

const (
	// Entity lifecycle events.
	EventPatientCreated      EventType = "patient_created"
	EventPatientUpdated      EventType = "patient_updated"
	EventPractitionerCreated EventType = "practitioner_created"
	EventPractitionerUpdated EventType = "practitioner_updated"
	EventEncounterCreated    EventType = "encounter_created"
	EventEncounterActivated  EventType = "encounter_activated"
	EventEncounterCompleted  EventType = "encounter_completed"
	EventEncounterAborted    EventType = "encounter_aborted"
	EventNoteCreated         EventType = "clinical_note_created"
	EventNoteAmended         EventType = "clinical_note_amended"
	EventNoteFinalized       EventType = "clinical_note_finalized"

	// Governance events.
	EventPolicyDecision          EventType = "policy_decision"
	EventPolicyEvaluationFailure EventType = "policy_evaluation_failure"
)
