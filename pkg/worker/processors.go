package worker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/inventory"
	"github.com/shelfwise/circulation/pkg/models"
)

func (w *Worker) ProcessExpireReservationsJob(ctx context.Context, job *models.Job) error {
	data, ok := job.DataParsed.(*models.JobExpireReservationsData)
	if !ok {
		data = &models.JobExpireReservationsData{}
		job.DataParsed = data
	}

	at := w.clock.Now()
	if data.At != nil {
		at = *data.At
	} else {
		data.At = &at
	}

	expired, err := w.reservationService.ExpireReservations(ctx, at)
	if err != nil {
		return errors.WithStack(err)
	}
	data.Expired = expired

	return nil
}

func (w *Worker) ProcessReconcileAvailabilityJob(ctx context.Context, job *models.Job) error {
	data, ok := job.DataParsed.(*models.JobReconcileAvailabilityData)
	if !ok {
		data = &models.JobReconcileAvailabilityData{}
		job.DataParsed = data
	}

	report, err := w.ledger.Reconcile(ctx, inventory.ReconcileOptions{DryRun: data.DryRun})
	if err != nil {
		return errors.WithStack(err)
	}
	data.Checked = report.Checked
	data.Corrected = report.Corrected

	return nil
}
