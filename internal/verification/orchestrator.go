package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
)

// Locker serializes initiate/recheck calls per (worker, type) key so two
// concurrent submissions never hit the external provider twice. The lock is
// advisory: losing it yields a structured busy failure, not an error.
type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Outcome is the structured result of one orchestrator operation. Callers
// always receive an Outcome for adapter-level failure; an error return means
// the infrastructure itself (store, unknown type) failed.
type Outcome struct {
	Type         models.VerificationType   `json:"verification_type"`
	Success      bool                      `json:"success"`
	RecordID     uuid.UUID                 `json:"record_id"`
	Status       models.VerificationStatus `json:"status"`
	ErrorMessage string                    `json:"error_message,omitempty"`
}

// Orchestrator coordinates verification checks: it resolves the adapter for
// a check type, drives initiate/status/recheck, persists results and
// triggers worker-status recomputation.
type Orchestrator struct {
	store      database.Store
	providers  map[models.VerificationType]Provider
	aggregator *Aggregator
	locker     Locker
	log        *logrus.Logger
}

// NewOrchestrator creates a verification orchestrator
func NewOrchestrator(store database.Store, providers map[models.VerificationType]Provider, aggregator *Aggregator, locker Locker, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		providers:  providers,
		aggregator: aggregator,
		locker:     locker,
		log:        log,
	}
}

// Initiate runs one verification check for a worker. It finds or creates
// the (worker, type) record, calls the adapter, persists the normalized
// result and any evidence documents, then recomputes the worker's status.
// Adapter failures of any kind are converted into a FAILED record and a
// success=false outcome so batch callers can continue with other checks.
func (o *Orchestrator) Initiate(ctx context.Context, workerID uuid.UUID, vType models.VerificationType, data map[string]string, documents []DocumentInput) (*Outcome, error) {
	provider, ok := o.providers[vType]
	if !ok {
		return nil, fmt.Errorf("no provider registered for verification type %s", vType)
	}

	release, busy := o.tryLock(ctx, workerID, vType)
	if busy != nil {
		return busy, nil
	}
	defer release()

	record, err := o.findOrCreateRecord(ctx, workerID, vType)
	if err != nil {
		return nil, err
	}
	previousStatus := record.Status

	result, verifyErr := provider.Verify(ctx, Request{
		WorkerID:  workerID,
		Type:      vType,
		Data:      data,
		Documents: documents,
	})
	if verifyErr != nil {
		// transient failure survived the adapter's retry policy
		o.log.WithFields(logrus.Fields{
			"worker_id": workerID,
			"type":      vType,
		}).WithError(verifyErr).Warn("verification provider call failed")
		result = failedResult(verifyErr.Error())
	}

	o.applyResult(record, provider.Name(), result)
	if err := o.store.UpsertRecord(ctx, record); err != nil {
		return nil, err
	}

	if err := o.persistDocuments(ctx, record.ID, documents); err != nil {
		return nil, err
	}

	o.appendHistory(ctx, record, previousStatus, "initiated via "+provider.Name())

	if err := o.aggregator.Recompute(ctx, workerID); err != nil {
		return nil, err
	}

	return o.outcome(record, result), nil
}

// InitiateAll runs Initiate for every check type present in the supplied
// data, in submission order, continuing past per-type failures. One provider
// outage must not block the other checks.
func (o *Orchestrator) InitiateAll(ctx context.Context, workerID uuid.UUID, data map[models.VerificationType]map[string]string, documents map[models.VerificationType][]DocumentInput) []Outcome {
	outcomes := make([]Outcome, 0, len(data))
	for _, vType := range models.AllVerificationTypes {
		typeData, ok := data[vType]
		if !ok {
			continue
		}

		outcome, err := o.Initiate(ctx, workerID, vType, typeData, documents[vType])
		if err != nil {
			o.log.WithFields(logrus.Fields{
				"worker_id": workerID,
				"type":      vType,
			}).WithError(err).Error("verification initiate failed")
			outcomes = append(outcomes, Outcome{
				Type:         vType,
				Success:      false,
				Status:       models.VerificationStatusFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}
		outcomes = append(outcomes, *outcome)
	}
	return outcomes
}

// CheckStatus refreshes a record from its provider. Without a provider
// request id there is nothing to poll and the stored status is returned.
// A failed poll surfaces as success=false but never overwrites the record:
// a polling hiccup is not a check failure.
func (o *Orchestrator) CheckStatus(ctx context.Context, recordID uuid.UUID) (*Outcome, error) {
	record, err := o.store.FindRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if record.ProviderRequestID == nil || *record.ProviderRequestID == "" {
		return o.storedOutcome(record), nil
	}

	provider, ok := o.providers[record.VerificationType]
	if !ok {
		return nil, fmt.Errorf("no provider registered for verification type %s", record.VerificationType)
	}

	result, pollErr := provider.GetStatus(ctx, *record.ProviderRequestID)
	if errors.Is(pollErr, ErrNotSupported) {
		return o.storedOutcome(record), nil
	}
	if pollErr != nil {
		out := o.storedOutcome(record)
		out.Success = false
		out.ErrorMessage = pollErr.Error()
		return out, nil
	}

	if gater, ok := provider.(resultGater); ok {
		gater.gateResult(ctx, record.WorkerID, result)
	}

	previousStatus := record.Status
	o.applyResult(record, provider.Name(), result)
	if err := o.store.UpsertRecord(ctx, record); err != nil {
		return nil, err
	}
	o.appendHistory(ctx, record, previousStatus, "status refreshed from "+provider.Name())

	if err := o.aggregator.Recompute(ctx, record.WorkerID); err != nil {
		return nil, err
	}

	return o.outcome(record, result), nil
}

// Recheck re-triggers provider-side re-evaluation of an existing submission,
// for example a sanctions-list rescreen. A recheck may move an expired or
// failed record back to verified.
func (o *Orchestrator) Recheck(ctx context.Context, recordID uuid.UUID) (*Outcome, error) {
	record, err := o.store.FindRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if record.ProviderRequestID == nil || *record.ProviderRequestID == "" {
		out := o.storedOutcome(record)
		out.Success = false
		out.ErrorMessage = "recheck requires a completed provider submission"
		return out, nil
	}

	provider, ok := o.providers[record.VerificationType]
	if !ok {
		return nil, fmt.Errorf("no provider registered for verification type %s", record.VerificationType)
	}

	release, busy := o.tryLock(ctx, record.WorkerID, record.VerificationType)
	if busy != nil {
		return busy, nil
	}
	defer release()

	result, recheckErr := provider.Recheck(ctx, *record.ProviderRequestID)
	if errors.Is(recheckErr, ErrNotSupported) {
		return o.storedOutcome(record), nil
	}
	if recheckErr != nil {
		out := o.storedOutcome(record)
		out.Success = false
		out.ErrorMessage = recheckErr.Error()
		return out, nil
	}

	if gater, ok := provider.(resultGater); ok {
		gater.gateResult(ctx, record.WorkerID, result)
	}

	previousStatus := record.Status
	o.applyResult(record, provider.Name(), result)
	if err := o.store.UpsertRecord(ctx, record); err != nil {
		return nil, err
	}
	o.appendHistory(ctx, record, previousStatus, "recheck via "+provider.Name())

	if err := o.aggregator.Recompute(ctx, record.WorkerID); err != nil {
		return nil, err
	}

	return o.outcome(record, result), nil
}

// WorkerRecords returns all verification records for a worker
func (o *Orchestrator) WorkerRecords(ctx context.Context, workerID uuid.UUID) ([]models.VerificationRecord, error) {
	return o.store.ListRecords(ctx, workerID)
}

func (o *Orchestrator) findOrCreateRecord(ctx context.Context, workerID uuid.UUID, vType models.VerificationType) (*models.VerificationRecord, error) {
	record, err := o.store.FindRecord(ctx, workerID, vType)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, database.ErrRecordNotFound) {
		return nil, err
	}
	return &models.VerificationRecord{
		WorkerID:         workerID,
		VerificationType: vType,
		Status:           models.VerificationStatusPending,
	}, nil
}

// applyResult maps a normalized adapter result onto the stored record
func (o *Orchestrator) applyResult(record *models.VerificationRecord, providerName string, result *Result) {
	record.Status = result.Status
	record.Provider = providerName
	record.RequiresManual = result.RequiresManual
	if result.ProviderRequestID != "" {
		id := result.ProviderRequestID
		record.ProviderRequestID = &id
	}
	if result.ProviderResponse != nil {
		record.ProviderResponse = result.ProviderResponse
	}
	if result.Metadata != nil {
		record.Metadata = result.Metadata
	}
	if result.ExpiresAt != nil {
		record.ExpiresAt = result.ExpiresAt
	}
	if result.ErrorMessage != "" {
		msg := result.ErrorMessage
		record.ErrorMessage = &msg
	} else {
		record.ErrorMessage = nil
	}
	if result.Status == models.VerificationStatusVerified {
		now := time.Now()
		record.VerifiedAt = &now
	}
}

func (o *Orchestrator) persistDocuments(ctx context.Context, recordID uuid.UUID, documents []DocumentInput) error {
	for _, doc := range documents {
		storageKey := slug.Make(doc.FileName)
		if storageKey == "" {
			storageKey = slug.Make(string(doc.Type))
		}
		err := o.store.CreateDocument(ctx, &models.VerificationDocument{
			RecordID:   recordID,
			Type:       doc.Type,
			FileURL:    doc.FileURL,
			FileName:   doc.FileName,
			StorageKey: storageKey,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) appendHistory(ctx context.Context, record *models.VerificationRecord, previous models.VerificationStatus, note string) {
	if err := o.store.CreateHistory(ctx, &models.VerificationHistory{
		RecordID:       record.ID,
		PreviousStatus: previous,
		NewStatus:      record.Status,
		Notes:          &note,
	}); err != nil {
		o.log.WithError(err).Warn("failed to append verification history")
	}
}

// tryLock takes the single-flight lock for one (worker, check type). A nil
// outcome means the caller may proceed; release is a no-op unless this call
// actually acquired the lock, so a request that ran unlocked through a
// lock-store outage can never delete a lock another request holds.
func (o *Orchestrator) tryLock(ctx context.Context, workerID uuid.UUID, vType models.VerificationType) (release func(), busy *Outcome) {
	key := lockKey(workerID, vType)
	acquired, err := o.locker.Acquire(ctx, key)
	if err != nil {
		// the lock is advisory; a lock-store outage must not stop verifications
		o.log.WithError(err).Warn("verification lock unavailable, proceeding without it")
		return func() {}, nil
	}
	if acquired {
		return func() {
			if err := o.locker.Release(ctx, key); err != nil {
				o.log.WithError(err).Warn("failed to release verification lock")
			}
		}, nil
	}

	status := models.VerificationStatusPending
	var recordID uuid.UUID
	if record, err := o.store.FindRecord(ctx, workerID, vType); err == nil {
		status = record.Status
		recordID = record.ID
	}
	return nil, &Outcome{
		Type:         vType,
		Success:      false,
		RecordID:     recordID,
		Status:       status,
		ErrorMessage: "a verification for this check is already in flight",
	}
}

func lockKey(workerID uuid.UUID, vType models.VerificationType) string {
	return workerID.String() + ":" + string(vType)
}

func (o *Orchestrator) outcome(record *models.VerificationRecord, result *Result) *Outcome {
	return &Outcome{
		Type:         record.VerificationType,
		Success:      result.Success,
		RecordID:     record.ID,
		Status:       record.Status,
		ErrorMessage: result.ErrorMessage,
	}
}

func (o *Orchestrator) storedOutcome(record *models.VerificationRecord) *Outcome {
	out := &Outcome{
		Type:     record.VerificationType,
		Success:  true,
		RecordID: record.ID,
		Status:   record.Status,
	}
	if record.ErrorMessage != nil {
		out.ErrorMessage = *record.ErrorMessage
	}
	return out
}
