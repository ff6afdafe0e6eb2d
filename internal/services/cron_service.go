package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronSchedules holds the cron expressions of the background jobs (seconds precision)
type CronSchedules struct {
	ExpirySweep    string // e.g. "0 * * * * *" = every minute
	RefundRun      string // e.g. "0 */5 * * * *" = every 5 minutes
	Reconciliation string // e.g. "0 30 * * * *" = hourly at :30
}

// jobRun is the outcome of the last execution of a job
type jobRun struct {
	At       time.Time
	Duration time.Duration
	Result   interface{}
	Error    string
}

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	schedules  CronSchedules
	expiration *BookingExpirationService
	refunds    *RefundProcessor
	reconciler *InventoryReconciler
	logger     *logrus.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	lastRun map[string]jobRun

	// running holds one lock per job so manual runs never overlap scheduled ones
	running map[string]*sync.Mutex
}

const (
	jobExpireBookings     = "expire_bookings"
	jobProcessRefunds     = "process_refunds"
	jobReconcileInventory = "reconcile_inventory"
)

// NewCronService creates a new CronService
func NewCronService(
	schedules CronSchedules,
	expiration *BookingExpirationService,
	refunds *RefundProcessor,
	reconciler *InventoryReconciler,
	logger *logrus.Logger,
) *CronService {
	cronLogger := cron.PrintfLogger(logger)
	return &CronService{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		schedules:  schedules,
		expiration: expiration,
		refunds:    refunds,
		reconciler: reconciler,
		logger:     logger,
		entries:    make(map[string]cron.EntryID),
		lastRun:    make(map[string]jobRun),
		running: map[string]*sync.Mutex{
			jobExpireBookings:     {},
			jobProcessRefunds:     {},
			jobReconcileInventory: {},
		},
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{jobExpireBookings, s.schedules.ExpirySweep, func() { s.expireBookingsJob() }},
		{jobProcessRefunds, s.schedules.RefundRun, func() { s.processRefundsJob() }},
		{jobReconcileInventory, s.schedules.Reconciliation, func() { s.reconcileInventoryJob() }},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			s.logger.WithField("job", job.name).Info("Job disabled (no schedule)")
			continue
		}
		id, err := s.cron.AddFunc(job.schedule, job.run)
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.entries[job.name] = id
		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"schedule": job.schedule,
		}).Info("Scheduled job")
	}

	s.cron.Start()
	s.logger.Info("Cron service started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// expireBookingsJob expires bookings past their windows
func (s *CronService) expireBookingsJob() (jobRun, bool) {
	return s.track(jobExpireBookings, func(ctx context.Context) (interface{}, error) {
		expired, err := s.expiration.RunOnce(ctx)
		return map[string]int{"expired": expired}, err
	})
}

// processRefundsJob settles pending refunds with the gateway
func (s *CronService) processRefundsJob() (jobRun, bool) {
	return s.track(jobProcessRefunds, func(ctx context.Context) (interface{}, error) {
		return s.refunds.ProcessPendingRefunds(ctx)
	})
}

// reconcileInventoryJob reports inventory drift
func (s *CronService) reconcileInventoryJob() (jobRun, bool) {
	return s.track(jobReconcileInventory, func(ctx context.Context) (interface{}, error) {
		return s.reconciler.Reconcile(ctx)
	})
}

// track runs fn unless another run of the same job is still in progress,
// in which case it reports ran=false
func (s *CronService) track(name string, fn func(ctx context.Context) (interface{}, error)) (run jobRun, ran bool) {
	entry := s.logger.WithField("job", name)
	lock := s.running[name]
	if !lock.TryLock() {
		entry.Warn("[CRON] Job still running, skipping this run")
		return jobRun{}, false
	}
	defer lock.Unlock()

	startTime := time.Now()
	entry.Debug("[CRON] Starting job")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := fn(ctx)
	run = jobRun{At: startTime, Duration: time.Since(startTime), Result: result}
	if err != nil {
		run.Error = err.Error()
		entry.WithError(err).Error("[CRON] Job failed")
	} else {
		entry.WithField("duration", run.Duration.String()).Debug("[CRON] Job finished")
	}

	s.mu.Lock()
	s.lastRun[name] = run
	s.mu.Unlock()
	return run, true
}

// RunExpireBookingsNow runs the expiry sweep immediately
func (s *CronService) RunExpireBookingsNow() map[string]interface{} {
	s.logger.Info("[MANUAL] Running booking expiry sweep now...")
	return s.manualResult(jobExpireBookings, s.expireBookingsJob)
}

// RunProcessRefundsNow runs the refund processor immediately
func (s *CronService) RunProcessRefundsNow() map[string]interface{} {
	s.logger.Info("[MANUAL] Running refund processor now...")
	return s.manualResult(jobProcessRefunds, s.processRefundsJob)
}

// RunReconcileInventoryNow runs inventory reconciliation immediately
func (s *CronService) RunReconcileInventoryNow() map[string]interface{} {
	s.logger.Info("[MANUAL] Running inventory reconciliation now...")
	return s.manualResult(jobReconcileInventory, s.reconcileInventoryJob)
}

func (s *CronService) manualResult(name string, job func() (jobRun, bool)) map[string]interface{} {
	if _, ran := job(); !ran {
		return map[string]interface{}{
			"job":     name,
			"skipped": true,
			"reason":  "job is already running",
		}
	}
	return s.lastRunOf(name)
}

func (s *CronService) lastRunOf(name string) map[string]interface{} {
	s.mu.Lock()
	run, ok := s.lastRun[name]
	s.mu.Unlock()
	if !ok {
		return map[string]interface{}{"job": name}
	}
	out := map[string]interface{}{
		"job":         name,
		"started_at":  run.At,
		"duration_ms": run.Duration.Milliseconds(),
		"result":      run.Result,
	}
	if run.Error != "" {
		out["error"] = run.Error
	}
	return out
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	jobs := make([]map[string]interface{}, 0, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		job := map[string]interface{}{
			"name":     name,
			"id":       id,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		}
		if last := s.lastRunOf(name); last["started_at"] != nil {
			job["last_run"] = last
		}
		jobs = append(jobs, job)
	}

	return map[string]interface{}{
		"running":    len(s.entries) > 0,
		"job_count":  len(s.entries),
		"jobs":       jobs,
		"expiration": s.expiration.GetStats(),
	}
}
