package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careshift/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordNotFound is returned when no verification record matches a lookup
var ErrRecordNotFound = errors.New("verification record not found")

// Store is the narrow persistence surface the verification orchestrator
// depends on. The orchestrator treats it as a record store keyed by
// (worker, verification type).
type Store interface {
	FindWorker(ctx context.Context, workerID uuid.UUID) (*models.Worker, error)
	UpdateWorkerStatus(ctx context.Context, workerID uuid.UUID, status models.WorkerStatus, onboarding models.OnboardingStatus) error

	FindRecord(ctx context.Context, workerID uuid.UUID, vType models.VerificationType) (*models.VerificationRecord, error)
	FindRecordByID(ctx context.Context, recordID uuid.UUID) (*models.VerificationRecord, error)
	ListRecords(ctx context.Context, workerID uuid.UUID) ([]models.VerificationRecord, error)
	UpsertRecord(ctx context.Context, record *models.VerificationRecord) error
	FindRecordByMetadata(ctx context.Context, vType models.VerificationType, key, value string) (*models.VerificationRecord, error)

	CreateDocument(ctx context.Context, doc *models.VerificationDocument) error
	CreateHistory(ctx context.Context, history *models.VerificationHistory) error

	ListExpiredVerified(ctx context.Context, now time.Time) ([]models.VerificationRecord, error)
	ListPollable(ctx context.Context) ([]models.VerificationRecord, error)
}

// GormStore implements Store on top of a gorm connection
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new store backed by the given database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindWorker loads a worker by id
func (s *GormStore) FindWorker(ctx context.Context, workerID uuid.UUID) (*models.Worker, error) {
	var worker models.Worker
	if err := s.db.WithContext(ctx).First(&worker, "id = ?", workerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("worker %s: %w", workerID, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("error finding worker: %w", err)
	}
	return &worker, nil
}

// UpdateWorkerStatus persists the derived eligibility status for a worker.
// This is the only write path for worker status.
func (s *GormStore) UpdateWorkerStatus(ctx context.Context, workerID uuid.UUID, status models.WorkerStatus, onboarding models.OnboardingStatus) error {
	result := s.db.WithContext(ctx).Model(&models.Worker{}).
		Where("id = ?", workerID).
		Updates(map[string]interface{}{
			"status":            status,
			"onboarding_status": onboarding,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("error updating worker status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("worker %s: %w", workerID, ErrRecordNotFound)
	}
	return nil
}

// FindRecord loads the record for a (worker, type) pair
func (s *GormStore) FindRecord(ctx context.Context, workerID uuid.UUID, vType models.VerificationType) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND verification_type = ?", workerID, vType).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error finding verification record: %w", err)
	}
	return &record, nil
}

// FindRecordByID loads a record by its primary key
func (s *GormStore) FindRecordByID(ctx context.Context, recordID uuid.UUID) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error finding verification record: %w", err)
	}
	return &record, nil
}

// ListRecords returns all verification records for a worker
func (s *GormStore) ListRecords(ctx context.Context, workerID uuid.UUID) ([]models.VerificationRecord, error) {
	var records []models.VerificationRecord
	if err := s.db.WithContext(ctx).Where("worker_id = ?", workerID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("error listing verification records: %w", err)
	}
	return records, nil
}

// UpsertRecord inserts or updates the record for its (worker, type) pair.
// The unique index on (worker_id, verification_type) is the serialization
// point that guarantees at most one record per pair.
func (s *GormStore) UpsertRecord(ctx context.Context, record *models.VerificationRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}, {Name: "verification_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "provider", "provider_request_id", "provider_response",
			"metadata", "verified_at", "expires_at", "error_message",
			"requires_manual", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("error upserting verification record: %w", err)
	}
	return nil
}

// FindRecordByMetadata finds a record of the given type whose metadata field
// key equals value. Used for the tax-number duplicate-registration guard.
func (s *GormStore) FindRecordByMetadata(ctx context.Context, vType models.VerificationType, key, value string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := s.db.WithContext(ctx).
		Where("verification_type = ? AND metadata->>? = ?", vType, key, value).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error finding record by metadata: %w", err)
	}
	return &record, nil
}

// CreateDocument stores an evidence document reference
func (s *GormStore) CreateDocument(ctx context.Context, doc *models.VerificationDocument) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("error creating verification document: %w", err)
	}
	return nil
}

// CreateHistory appends a status-transition audit row
func (s *GormStore) CreateHistory(ctx context.Context, history *models.VerificationHistory) error {
	if err := s.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("error creating verification history: %w", err)
	}
	return nil
}

// ListExpiredVerified returns VERIFIED records whose expiry has elapsed
func (s *GormStore) ListExpiredVerified(ctx context.Context, now time.Time) ([]models.VerificationRecord, error) {
	var records []models.VerificationRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.VerificationStatusVerified, now).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error listing expired records: %w", err)
	}
	return records, nil
}

// ListPollable returns IN_PROGRESS records that hold a provider request id
// and can therefore be refreshed against the provider.
func (s *GormStore) ListPollable(ctx context.Context) ([]models.VerificationRecord, error) {
	var records []models.VerificationRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND provider_request_id IS NOT NULL", models.VerificationStatusInProgress).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error listing pollable records: %w", err)
	}
	return records, nil
}
