package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutils.NewTestDB(t), clock.NewMock(time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)))
}

func TestHasActiveJobByType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []*models.Job
		want     bool
	}{
		{"no jobs", nil, false},
		{"pending", []*models.Job{{Type: models.JobTypeExpireReservations, Status: models.JobStatusPending}}, true},
		{"in progress", []*models.Job{{Type: models.JobTypeExpireReservations, Status: models.JobStatusInProgress}}, true},
		{"completed", []*models.Job{{Type: models.JobTypeExpireReservations, Status: models.JobStatusCompleted}}, false},
		{"failed", []*models.Job{{Type: models.JobTypeExpireReservations, Status: models.JobStatusFailed}}, false},
		{"other type", []*models.Job{{Type: models.JobTypeReconcileAvailability, Status: models.JobStatusPending}}, false},
		{"completed then pending", []*models.Job{
			{Type: models.JobTypeExpireReservations, Status: models.JobStatusCompleted},
			{Type: models.JobTypeExpireReservations, Status: models.JobStatusPending},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			svc := newTestService(t)

			for _, job := range tt.existing {
				require.NoError(t, svc.CreateJob(ctx, job))
			}

			hasActive, err := svc.HasActiveJobByType(ctx, models.JobTypeExpireReservations)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hasActive)
		})
	}
}

func TestCreateJob_RoundTripsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)

	at := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	job := &models.Job{
		Type:       models.JobTypeExpireReservations,
		DataParsed: &models.JobExpireReservationsData{At: &at},
	}
	require.NoError(t, svc.CreateJob(ctx, job))
	assert.Equal(t, models.JobStatusPending, job.Status)

	fetched, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	data, ok := fetched.DataParsed.(*models.JobExpireReservationsData)
	require.True(t, ok)
	require.NotNil(t, data.At)
	assert.True(t, at.Equal(*data.At))

	missing := 12345
	_, err = svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &missing})
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestClaimJob_OnlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)

	job := &models.Job{Type: models.JobTypeReconcileAvailability}
	require.NoError(t, svc.CreateJob(ctx, job))

	first := *job
	second := *job

	claimed, err := svc.ClaimJob(ctx, &first, "process-a")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = svc.ClaimJob(ctx, &second, "process-b")
	require.NoError(t, err)
	assert.False(t, claimed)

	fetched, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, fetched.Status)
	require.NotNil(t, fetched.ProcessID)
	assert.Equal(t, "process-a", *fetched.ProcessID)
}

func TestListJobs_Filters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.CreateJob(ctx, &models.Job{Type: models.JobTypeExpireReservations, Status: models.JobStatusCompleted}))
	require.NoError(t, svc.CreateJob(ctx, &models.Job{Type: models.JobTypeReconcileAvailability}))
	processID := "mine"
	require.NoError(t, svc.CreateJob(ctx, &models.Job{Type: models.JobTypeExpireReservations, ProcessID: &processID}))

	jobs, total, err := svc.ListJobsWithTotal(ctx, ListJobsOptions{Statuses: []string{models.JobStatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, jobs, 2)

	jobType := models.JobTypeExpireReservations
	jobs, err = svc.ListJobs(ctx, ListJobsOptions{Type: &jobType})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = svc.ListJobs(ctx, ListJobsOptions{
		Statuses:           []string{models.JobStatusPending},
		ProcessIDToExclude: &processID,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobTypeReconcileAvailability, jobs[0].Type)
}
