package logging

// Standardized attribute keys shared across components.
const (
	FieldComponent      = "component"
	FieldQueueID        = "queue_id"
	FieldProvider       = "provider"
	FieldGenerationType = "generation_type"
	FieldModel          = "model"
	FieldStatus         = "status"
	FieldCredits        = "credits"
	FieldEventType      = "event_type"
)
