package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobTypeExpireReservations    = "expire_reservations"
	JobTypeReconcileAvailability = "reconcile_availability"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
	Error      *string     `json:"error,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeExpireReservations:
		job.DataParsed = &JobExpireReservationsData{}
	case JobTypeReconcileAvailability:
		job.DataParsed = &JobReconcileAvailabilityData{}
	default:
		return errors.Errorf("unknown job type %q", job.Type)
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

type JobExpireReservationsData struct {
	// At overrides the cutoff; the processor uses the current time when nil.
	At      *time.Time `json:"at,omitempty"`
	Expired int        `json:"expired"`
}

type JobReconcileAvailabilityData struct {
	DryRun    bool `json:"dry_run"`
	Checked   int  `json:"checked"`
	Corrected int  `json:"corrected"`
}
