// Package history persists one outcome row per processed URL so past runs
// can be inspected with the history command.
package history

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// State is the terminal state of one processed URL.
type State string

// Terminal states.
const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Record is one processed URL.
type Record struct {
	ID        string    `gorm:"primarykey;type:varchar(26)" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	URL   string `gorm:"not null;size:2048;index" json:"url"`
	State State  `gorm:"not null;size:20;index" json:"state"`

	// Message is the short human-readable outcome ("Download finished",
	// or the report's short message on failure).
	Message string `gorm:"size:512" json:"message,omitempty"`

	// OutputPath is the final file location for completed downloads.
	OutputPath string `gorm:"size:2048" json:"output_path,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// TableName returns the table name for Record.
func (Record) TableName() string {
	return "downloads"
}

// BeforeCreate generates a ULID if not already set.
func (r *Record) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	return nil
}
