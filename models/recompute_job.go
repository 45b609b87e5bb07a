package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// RecomputeJob tracks one pass of tier recomputation over a business's
// customers. Cursor is the last customer id fully handled, so an interrupted
// job resumes after it.
type RecomputeJob struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID        int64          `gorm:"not null;index" json:"business_id"`
	Status            string         `gorm:"not null;default:pending;index" json:"status"` // pending, processing, completed, failed
	Reason            string         `json:"reason"`
	Cursor            int64          `gorm:"not null;default:0" json:"cursor"`
	Processed         int            `gorm:"not null;default:0" json:"processed"`
	Changed           int            `gorm:"not null;default:0" json:"changed"`
	Failed            int            `gorm:"not null;default:0" json:"failed"`
	FailedCustomerIDs datatypes.JSON `gorm:"column:failed_customer_ids" json:"failed_customer_ids"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (j *RecomputeJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// FailedIDs decodes FailedCustomerIDs.
func (j *RecomputeJob) FailedIDs() []int64 {
	var ids []int64
	if len(j.FailedCustomerIDs) == 0 {
		return ids
	}
	_ = json.Unmarshal(j.FailedCustomerIDs, &ids)
	return ids
}

// SetFailedIDs replaces FailedCustomerIDs.
func (j *RecomputeJob) SetFailedIDs(ids []int64) {
	if ids == nil {
		ids = []int64{}
	}
	b, _ := json.Marshal(ids)
	j.FailedCustomerIDs = datatypes.JSON(b)
}

// IsFinished reports whether the job reached a terminal status.
func (j *RecomputeJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
