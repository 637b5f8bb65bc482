// Package events publishes import lifecycle notifications so downstream
// consumers (dashboards, accounting exports) can react to processed files.
package events

import "time"

// TopicFileProcessed is published once per finished file import attempt.
const TopicFileProcessed = "camt54.file_processed"

// FileProcessed describes the outcome of one file import.
type FileProcessed struct {
	LogID                  string    `json:"log_id"`
	ConfigName             string    `json:"config_name"`
	Filename               string    `json:"filename"`
	State                  string    `json:"state"`
	StatementsCreated      int       `json:"statements_created"`
	TransactionsImported   int       `json:"transactions_imported"`
	TransactionsReconciled int       `json:"transactions_reconciled"`
	ProcessedAt            time.Time `json:"processed_at"`
}

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(topic string, event any) error
	Close() error
}

// NopPublisher discards all events. Used when eventing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
func (NopPublisher) Close() error              { return nil }
