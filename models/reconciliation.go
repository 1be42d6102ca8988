package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "pending"
	ReconciliationResolved ReconciliationStatus = "resolved"
	ReconciliationFailed   ReconciliationStatus = "failed" // gave up after max attempts
)

// ReconciliationTask is a grant that failed part-way and must be retried
// until it either succeeds or is abandoned.
type ReconciliationTask struct {
	ID        string               `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string               `gorm:"index;not null" json:"user_id"`
	Source    string               `gorm:"type:varchar(32);not null" json:"source"` // milestone
	Reference string               `gorm:"type:varchar(128)" json:"reference"`
	Payload   datatypes.JSON       `json:"payload"`
	Status    ReconciliationStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Attempts  int                  `gorm:"not null;default:0" json:"attempts"`
	LastError string               `gorm:"type:text" json:"last_error,omitempty"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Timestamps
}

func (t *ReconciliationTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = ReconciliationPending
	}
	return nil
}
