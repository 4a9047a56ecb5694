package stores

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a monitor does not exist.
	ErrNotFound = errors.New("monitor not found")

	// ErrDuplicateName is returned when a monitor name is already taken.
	ErrDuplicateName = errors.New("monitor name already exists")
)

// MonitorRecord is a monitor as persisted by the control-plane simulator.
type MonitorRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URI          string    `json:"uri"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Frequency    *int      `json:"frequency,omitempty"`
	Locations    []string  `json:"locations"`
	SLAThreshold *float64  `json:"sla_threshold,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuditEntry records one control-plane request handled by the simulator.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Operation  string    `json:"operation"`
	MonitorID  *string   `json:"monitor_id,omitempty"`
	Actor      string    `json:"actor"` // masked API key
	StatusCode int       `json:"status_code"`
	Details    *string   `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store defines the interface for the simulator persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// Monitor operations
	CreateMonitor(ctx context.Context, monitor *MonitorRecord) error
	GetMonitor(ctx context.Context, id string) (*MonitorRecord, error)
	GetMonitorByName(ctx context.Context, name string) (*MonitorRecord, error)
	ReplaceMonitor(ctx context.Context, monitor *MonitorRecord) error
	DeleteMonitor(ctx context.Context, id string) error
	ListMonitors(ctx context.Context, limit, offset int) ([]*MonitorRecord, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, operation *string, limit, offset int) ([]*AuditEntry, error)
}
