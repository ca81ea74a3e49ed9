package core

// EventLogger is the slice of the observability event log that core
// services need. Declared here so core stays free of an observability
// import.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
