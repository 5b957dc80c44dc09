// Package jobs holds the background maintenance work around verification
// records: expiring stale clearances and polling providers for checks that
// complete asynchronously.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/queue"
	"github.com/careshift/backend/internal/verification"
	"github.com/sirupsen/logrus"
)

const (
	// JobTypeExpirySweep moves VERIFIED records past their expiry to EXPIRED
	JobTypeExpirySweep = "verification_expiry_sweep"
	// JobTypeStatusPoll refreshes IN_PROGRESS records from their providers
	JobTypeStatusPoll = "verification_status_poll"
)

// VerificationJobs wires the verification maintenance job handlers
type VerificationJobs struct {
	store        database.Store
	orchestrator *verification.Orchestrator
	aggregator   *verification.Aggregator
	log          *logrus.Logger
}

// NewVerificationJobs creates the verification job handlers
func NewVerificationJobs(store database.Store, orchestrator *verification.Orchestrator, aggregator *verification.Aggregator, log *logrus.Logger) *VerificationJobs {
	return &VerificationJobs{
		store:        store,
		orchestrator: orchestrator,
		aggregator:   aggregator,
		log:          log,
	}
}

// RegisterHandlers registers the verification job handlers with the queue
func (j *VerificationJobs) RegisterHandlers(q *queue.Queue) {
	q.RegisterHandler(JobTypeExpirySweep, j.runExpirySweep)
	q.RegisterHandler(JobTypeStatusPoll, j.runStatusPoll)
}

// runExpirySweep expires VERIFIED records whose expiry has elapsed and
// recomputes the affected workers' statuses. Expiry is detected here, not at
// read time, so aggregation never observes a stale VERIFIED record.
func (j *VerificationJobs) runExpirySweep(ctx context.Context, job queue.Job) (interface{}, error) {
	records, err := j.store.ListExpiredVerified(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired records: %w", err)
	}

	expired := 0
	for i := range records {
		record := records[i]
		previous := record.Status
		record.Status = models.VerificationStatusExpired

		if err := j.store.UpsertRecord(ctx, &record); err != nil {
			j.log.WithError(err).WithField("record_id", record.ID).Error("failed to expire record")
			continue
		}

		note := "expiry elapsed"
		if err := j.store.CreateHistory(ctx, &models.VerificationHistory{
			RecordID:       record.ID,
			PreviousStatus: previous,
			NewStatus:      record.Status,
			Notes:          &note,
		}); err != nil {
			j.log.WithError(err).Warn("failed to append expiry history")
		}

		if err := j.aggregator.Recompute(ctx, record.WorkerID); err != nil {
			j.log.WithError(err).WithField("worker_id", record.WorkerID).Error("failed to re-aggregate after expiry")
			continue
		}
		expired++
	}

	j.log.WithField("expired", expired).Info("verification expiry sweep completed")
	return map[string]interface{}{"expired": expired}, nil
}

// runStatusPoll refreshes every IN_PROGRESS record that holds a provider
// request id. Covers registries that decide asynchronously without webhooks.
func (j *VerificationJobs) runStatusPoll(ctx context.Context, job queue.Job) (interface{}, error) {
	records, err := j.store.ListPollable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pollable records: %w", err)
	}

	polled := 0
	for _, record := range records {
		outcome, err := j.orchestrator.CheckStatus(ctx, record.ID)
		if err != nil {
			j.log.WithError(err).WithField("record_id", record.ID).Error("status poll failed")
			continue
		}
		if outcome.Status != record.Status {
			j.log.WithFields(logrus.Fields{
				"record_id": record.ID,
				"from":      record.Status,
				"to":        outcome.Status,
			}).Info("verification status changed on poll")
		}
		polled++
	}

	return map[string]interface{}{"polled": polled}, nil
}
