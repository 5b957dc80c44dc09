package verification

import (
	"context"
	"fmt"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
	"github.com/google/uuid"
)

// Aggregator derives a worker's overall eligibility from the worker's
// verification records and the configured set of required check types. It
// owns the only write path to worker status.
type Aggregator struct {
	store    database.Store
	required []models.VerificationType
}

// NewAggregator creates an aggregator. Identity and work rights are always
// required; the remaining checks follow configuration.
func NewAggregator(store database.Store, cfg config.VerificationConfig) *Aggregator {
	required := []models.VerificationType{
		models.VerificationTypeIdentity,
		models.VerificationTypeWorkRights,
	}
	if cfg.RequireWWCC {
		required = append(required, models.VerificationTypeWWCC)
	}
	if cfg.RequireDisabilityScreening {
		required = append(required, models.VerificationTypeDisabilityScreening)
	}
	if cfg.RequireFirstAid {
		required = append(required, models.VerificationTypeFirstAid)
	}
	return &Aggregator{store: store, required: required}
}

// RequiredTypes returns the check types a worker must pass to go live
func (a *Aggregator) RequiredTypes() []models.VerificationType {
	return a.required
}

// ComputeWorkerStatus derives a worker's status from a record set and the
// required types. Pure function; evaluation order is the contract:
// any required failure rejects, then any required expiry suspends, then a
// full set of verified records completes onboarding, and anything short of
// that leaves the worker onboarding.
func ComputeWorkerStatus(records []models.VerificationRecord, required []models.VerificationType) (models.WorkerStatus, models.OnboardingStatus) {
	byType := make(map[models.VerificationType]models.VerificationRecord, len(records))
	for _, r := range records {
		byType[r.VerificationType] = r
	}

	anyExpired := false
	allVerified := true
	for _, t := range required {
		record, ok := byType[t]
		if !ok {
			allVerified = false
			continue
		}
		switch record.Status {
		case models.VerificationStatusFailed:
			return models.WorkerStatusRejected, models.OnboardingInProgress
		case models.VerificationStatusExpired:
			anyExpired = true
		case models.VerificationStatusVerified:
			// counts toward completion
		default:
			allVerified = false
		}
	}

	if anyExpired {
		return models.WorkerStatusSuspended, models.OnboardingInProgress
	}
	if allVerified && len(required) > 0 {
		return models.WorkerStatusVerified, models.OnboardingCompleted
	}
	return models.WorkerStatusOnboarding, models.OnboardingInProgress
}

// Recompute re-derives and persists the worker's status from the current
// record set. Called after every record mutation.
func (a *Aggregator) Recompute(ctx context.Context, workerID uuid.UUID) error {
	records, err := a.store.ListRecords(ctx, workerID)
	if err != nil {
		return fmt.Errorf("failed to load records for aggregation: %w", err)
	}

	status, onboarding := ComputeWorkerStatus(records, a.required)
	if err := a.store.UpdateWorkerStatus(ctx, workerID, status, onboarding); err != nil {
		return fmt.Errorf("failed to persist worker status: %w", err)
	}
	return nil
}
