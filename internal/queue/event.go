// Package queue defines the messages exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import "time"

// Queue names.
const (
	SessionEventsQueue = "attendance.events"
	BackupQueue        = "backup.requested"
)

// Session event types.
const (
	EventSessionOpened = "session.opened"
	EventSessionClosed = "session.closed"
	EventCheckedIn     = "attendance.checked_in"
	EventCheckedOut    = "attendance.checked_out"
)

// Reasons a session was closed, carried in SessionEvent.Reason.
const (
	CloseManual = "manual"
	CloseRank   = "rank"
	CloseAuto   = "auto"
)

// SessionEvent is published after a session or attendance transition has
// been committed.  Consumers can log or notify without querying the
// database.
type SessionEvent struct {
	Type              string    `json:"type"`
	SessionID         uint64    `json:"session_id"`
	EventType         string    `json:"event_type"`
	PersonnelID       uint64    `json:"personnel_id,omitempty"`
	Stammrollennummer string    `json:"stammrollennummer,omitempty"`
	Name              string    `json:"name,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	CheckedOut        int64     `json:"checked_out,omitempty"`
	At                time.Time `json:"at"`
}

// BackupRequest asks the backup worker to produce a backup and prune old
// ones.
type BackupRequest struct {
	RequestedAt   time.Time `json:"requested_at"`
	Path          string    `json:"path"`
	RetentionDays int       `json:"retention_days"`
}
