// Package queue is a small database-backed job queue for the background
// verification maintenance work (expiry sweeps, status polls).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetry      JobStatus = "retry_scheduled"
)

// Job represents a background job
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) (interface{}, error)

// Queue is a database-backed job queue
type Queue struct {
	db       *gorm.DB
	handlers map[JobType]JobHandler
	log      *logrus.Logger
	quit     chan struct{}
}

// retryBaseInterval is the first retry delay; each subsequent retry doubles it
const retryBaseInterval = 30 * time.Second

// NewQueue creates a new queue
func NewQueue(db *gorm.DB, log *logrus.Logger) *Queue {
	return &Queue{
		db:       db,
		handlers: make(map[JobType]JobHandler),
		log:      log,
		quit:     make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.handlers[jobType] = handler
}

// EnqueueJob creates and stores a new pending job
func (q *Queue) EnqueueJob(jobType JobType, payload interface{}) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    data,
		Status:     JobStatusPending,
		MaxRetries: 3,
	}
	if err := q.db.Create(&job).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// ProcessJobs polls for runnable jobs until Stop is called. Runnable means
// pending, or scheduled for retry with the retry time elapsed.
func (q *Queue) ProcessJobs(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			q.processPending()
		}
	}
}

// Stop stops the processing loop
func (q *Queue) Stop() {
	close(q.quit)
}

func (q *Queue) processPending() {
	var jobs []Job
	err := q.db.
		Where("status = ? OR (status = ? AND next_retry <= ?)", JobStatusPending, JobStatusRetry, time.Now()).
		Order("created_at").
		Limit(20).
		Find(&jobs).Error
	if err != nil {
		q.log.WithError(err).Error("failed to query pending jobs")
		return
	}

	for _, job := range jobs {
		q.runJob(job)
	}
}

func (q *Queue) runJob(job Job) {
	handler, ok := q.handlers[job.Type]
	if !ok {
		q.log.WithField("type", job.Type).Warn("no handler registered for job type")
		q.updateJob(job.ID, map[string]interface{}{
			"status": JobStatusFailed,
			"error":  "no handler registered",
		})
		return
	}

	q.updateJob(job.ID, map[string]interface{}{"status": JobStatusProcessing})

	result, err := handler(context.Background(), job)
	if err != nil {
		q.handleFailure(job, err)
		return
	}

	resultData, _ := json.Marshal(result)
	q.updateJob(job.ID, map[string]interface{}{
		"status": JobStatusCompleted,
		"result": resultData,
		"error":  "",
	})
}

// handleFailure schedules a retry with exponential backoff or marks the job
// permanently failed once retries are exhausted
func (q *Queue) handleFailure(job Job, jobErr error) {
	retryCount := job.RetryCount + 1
	if retryCount > job.MaxRetries {
		q.log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"type":   job.Type,
		}).WithError(jobErr).Error("job permanently failed")
		q.updateJob(job.ID, map[string]interface{}{
			"status": JobStatusFailed,
			"error":  fmt.Sprintf("exceeded max retries: %v", jobErr),
		})
		return
	}

	backoff := retryBaseInterval
	for i := 1; i < retryCount; i++ {
		backoff *= 2
	}
	nextRetry := time.Now().Add(backoff)

	q.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"type":     job.Type,
		"attempt":  retryCount,
		"retry_in": backoff.String(),
	}).WithError(jobErr).Warn("job failed, retry scheduled")

	q.updateJob(job.ID, map[string]interface{}{
		"status":      JobStatusRetry,
		"retry_count": retryCount,
		"next_retry":  nextRetry,
		"error":       jobErr.Error(),
	})
}

func (q *Queue) updateJob(jobID uuid.UUID, updates map[string]interface{}) {
	updates["updated_at"] = time.Now()
	if err := q.db.Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		q.log.WithError(err).Error("failed to update job")
	}
}
