package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/segmentio/encoding/json"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/config"
	"github.com/shelfwise/circulation/pkg/inventory"
	"github.com/shelfwise/circulation/pkg/jobs"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/shelfwise/circulation/pkg/reservations"
	"github.com/uptrace/bun"
)

const fetchInterval = 5 * time.Second

type Worker struct {
	config    *config.Config
	log       logger.Logger
	clock     clock.Clock
	processID string

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	jobService         *jobs.Service
	ledger             *inventory.Ledger
	reservationService *reservations.Service

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneScheduling chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB, clk clock.Clock, p policy.Policy) *Worker {
	ledger := inventory.NewLedger(db, clk)

	w := &Worker{
		config:    cfg,
		log:       logger.New(),
		clock:     clk,
		processID: uuid.NewString(),

		jobService:         jobs.NewService(db, clk),
		ledger:             ledger,
		reservationService: reservations.NewService(db, ledger, p, clk),

		queue:          make(chan *models.Job, max(1, cfg.WorkerProcesses)),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneScheduling: make(chan struct{}),
		doneProcessing: make(chan struct{}, max(1, cfg.WorkerProcesses)),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeExpireReservations:    w.ProcessExpireReservationsJob,
		models.JobTypeReconcileAvailability: w.ProcessReconcileAvailabilityJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	go w.scheduleExpiry()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	timer := time.NewTimer(fetchInterval)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			timer.Stop()
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &w.processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(fetchInterval)
				continue
			}
			for _, job := range j {
				select {
				case w.queue <- job:
				case <-w.shutdown:
				}
			}
			timer.Reset(fetchInterval)
		}
	}
}

// scheduleExpiry queues an expire_reservations job every expiry interval.
func (w *Worker) scheduleExpiry() {
	interval := time.Duration(max(1, w.config.ExpiryIntervalMinutes)) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			w.doneScheduling <- struct{}{}
			return
		case <-ticker.C:
			ctx := w.log.WithContext(context.Background())
			if _, err := w.ScheduleExpiry(ctx); err != nil {
				w.log.Err(err).Error("schedule expiry error")
			}
		}
	}
}

// ScheduleExpiry queues an expire_reservations job unless one is already
// pending or running. It reports whether it queued one.
func (w *Worker) ScheduleExpiry(ctx context.Context) (bool, error) {
	hasActive, err := w.jobService.HasActiveJobByType(ctx, models.JobTypeExpireReservations)
	if err != nil {
		return false, err
	}
	if hasActive {
		return false, nil
	}

	job := &models.Job{
		Type:       models.JobTypeExpireReservations,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobExpireReservationsData{},
	}
	if err := w.jobService.CreateJob(ctx, job); err != nil {
		return false, err
	}

	logger.FromContext(ctx).Info("expiry job scheduled", logger.Data{"job_id": job.ID})
	return true, nil
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			// Prep the context to be passed down to the process function.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": w.processID})
			ctx := log.WithContext(context.Background())

			if err := w.RunJob(ctx, job); err != nil {
				log.Err(err).Error("process error")
			}
		}
	}
}

// RunJob claims the job for this process, runs it and records the outcome.
// A job someone else claimed first is skipped.
func (w *Worker) RunJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)

	claimed, err := w.jobService.ClaimJob(ctx, job, w.processID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("job already claimed")
		return nil
	}

	fn, ok := w.processFuncs[job.Type]
	if !ok {
		err = errors.Errorf("can't find process function for type %q", job.Type)
	} else {
		err = fn(ctx, job)
	}

	columns := []string{"status", "data"}
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = pointerutil.String(err.Error())
		columns = append(columns, "error")
	} else {
		job.Status = models.JobStatusCompleted
		job.Progress = 100
		columns = append(columns, "progress")
	}
	if job.DataParsed != nil {
		data, merr := json.Marshal(job.DataParsed)
		if merr != nil {
			return errors.WithStack(merr)
		}
		job.Data = string(data)
	}

	if uerr := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{Columns: columns}); uerr != nil {
		return uerr
	}
	return err
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	<-w.doneScheduling
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}
