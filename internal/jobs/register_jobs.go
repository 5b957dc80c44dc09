package jobs

import (
	"time"

	"github.com/careshift/backend/internal/queue"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// ScheduleRecurringJobs registers the verification job handlers and starts a
// scheduler that enqueues them on their intervals. The returned scheduler is
// already running; callers own its shutdown.
func ScheduleRecurringJobs(q *queue.Queue, verificationJobs *VerificationJobs, log *logrus.Logger) (*gocron.Scheduler, error) {
	verificationJobs.RegisterHandlers(q)

	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(1).Hour().Do(func() {
		if _, err := q.EnqueueJob(JobTypeExpirySweep, nil); err != nil {
			log.WithError(err).Error("failed to enqueue expiry sweep")
		}
	})
	if err != nil {
		return nil, err
	}

	_, err = scheduler.Every(15).Minutes().Do(func() {
		if _, err := q.EnqueueJob(JobTypeStatusPoll, nil); err != nil {
			log.WithError(err).Error("failed to enqueue status poll")
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	return scheduler, nil
}
