package verification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
)

// fakeStore is an in-memory database.Store for orchestrator tests.
type fakeStore struct {
	workers   map[uuid.UUID]*models.Worker
	records   map[uuid.UUID]*models.VerificationRecord
	documents []models.VerificationDocument
	history   []models.VerificationHistory
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workers: make(map[uuid.UUID]*models.Worker),
		records: make(map[uuid.UUID]*models.VerificationRecord),
	}
}

func (s *fakeStore) addWorker() uuid.UUID {
	worker := &models.Worker{Status: models.WorkerStatusOnboarding, OnboardingStatus: models.OnboardingInProgress}
	worker.ID = uuid.New()
	s.workers[worker.ID] = worker
	return worker.ID
}

func (s *fakeStore) FindWorker(ctx context.Context, workerID uuid.UUID) (*models.Worker, error) {
	worker, ok := s.workers[workerID]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	return worker, nil
}

func (s *fakeStore) UpdateWorkerStatus(ctx context.Context, workerID uuid.UUID, status models.WorkerStatus, onboarding models.OnboardingStatus) error {
	worker, ok := s.workers[workerID]
	if !ok {
		return database.ErrRecordNotFound
	}
	worker.Status = status
	worker.OnboardingStatus = onboarding
	return nil
}

func (s *fakeStore) FindRecord(ctx context.Context, workerID uuid.UUID, vType models.VerificationType) (*models.VerificationRecord, error) {
	for _, record := range s.records {
		if record.WorkerID == workerID && record.VerificationType == vType {
			copy := *record
			return &copy, nil
		}
	}
	return nil, database.ErrRecordNotFound
}

func (s *fakeStore) FindRecordByID(ctx context.Context, recordID uuid.UUID) (*models.VerificationRecord, error) {
	record, ok := s.records[recordID]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	copy := *record
	return &copy, nil
}

func (s *fakeStore) ListRecords(ctx context.Context, workerID uuid.UUID) ([]models.VerificationRecord, error) {
	var records []models.VerificationRecord
	for _, record := range s.records {
		if record.WorkerID == workerID {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (s *fakeStore) UpsertRecord(ctx context.Context, record *models.VerificationRecord) error {
	for _, existing := range s.records {
		if existing.WorkerID == record.WorkerID && existing.VerificationType == record.VerificationType {
			record.ID = existing.ID
			copy := *record
			s.records[existing.ID] = &copy
			return nil
		}
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	copy := *record
	s.records[record.ID] = &copy
	return nil
}

func (s *fakeStore) FindRecordByMetadata(ctx context.Context, vType models.VerificationType, key, value string) (*models.VerificationRecord, error) {
	for _, record := range s.records {
		if record.VerificationType != vType || record.Metadata == nil {
			continue
		}
		if stored, ok := record.Metadata[key].(string); ok && stored == value {
			copy := *record
			return &copy, nil
		}
	}
	return nil, database.ErrRecordNotFound
}

func (s *fakeStore) CreateDocument(ctx context.Context, doc *models.VerificationDocument) error {
	s.documents = append(s.documents, *doc)
	return nil
}

func (s *fakeStore) CreateHistory(ctx context.Context, history *models.VerificationHistory) error {
	s.history = append(s.history, *history)
	return nil
}

func (s *fakeStore) ListExpiredVerified(ctx context.Context, now time.Time) ([]models.VerificationRecord, error) {
	var records []models.VerificationRecord
	for _, record := range s.records {
		if record.Status == models.VerificationStatusVerified && record.ExpiresAt != nil && record.ExpiresAt.Before(now) {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (s *fakeStore) ListPollable(ctx context.Context) ([]models.VerificationRecord, error) {
	var records []models.VerificationRecord
	for _, record := range s.records {
		if record.Status == models.VerificationStatusInProgress && record.ProviderRequestID != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}

var _ database.Store = (*fakeStore)(nil)

// fakeLocker implements Locker with a switchable busy state.
type fakeLocker struct {
	busy       bool
	acquireErr error
	acquired   []string
	released   []string
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.busy {
		return false, nil
	}
	l.acquired = append(l.acquired, key)
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, key string) error {
	l.released = append(l.released, key)
	return nil
}

// stubProvider returns scripted results and counts invocations.
type stubProvider struct {
	name          string
	verifyResult  *Result
	verifyErr     error
	statusResult  *Result
	statusErr     error
	recheckResult *Result
	recheckErr    error
	verifyCalls   int
	statusCalls   int
	recheckCalls  int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Verify(ctx context.Context, req Request) (*Result, error) {
	p.verifyCalls++
	return p.verifyResult, p.verifyErr
}

func (p *stubProvider) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	p.statusCalls++
	return p.statusResult, p.statusErr
}

func (p *stubProvider) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	p.recheckCalls++
	return p.recheckResult, p.recheckErr
}

func newTestOrchestrator(store *fakeStore, locker Locker, providers map[models.VerificationType]Provider) *Orchestrator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	aggregator := NewAggregator(store, config.VerificationConfig{RequireWWCC: true})
	return NewOrchestrator(store, providers, aggregator, locker, log)
}

func verifiedResult(providerRequestID string) *Result {
	return &Result{
		Success:           true,
		Status:            models.VerificationStatusVerified,
		ProviderRequestID: providerRequestID,
	}
}

func TestInitiatePersistsResultAndHistory(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "greenid", verifyResult: verifiedResult("req-1")}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeIdentity: provider,
	})

	outcome, err := o.Initiate(context.Background(), workerID, models.VerificationTypeIdentity, map[string]string{"given_name": "Ana"}, []DocumentInput{
		{Type: models.DocumentTypeDriversLicence, FileURL: "https://files/dl.pdf", FileName: "Drivers Licence.pdf"},
	})

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.VerificationStatusVerified, outcome.Status)

	record, err := store.FindRecord(context.Background(), workerID, models.VerificationTypeIdentity)
	require.NoError(t, err)
	assert.Equal(t, "greenid", record.Provider)
	require.NotNil(t, record.ProviderRequestID)
	assert.Equal(t, "req-1", *record.ProviderRequestID)
	assert.NotNil(t, record.VerifiedAt)

	require.Len(t, store.documents, 1)
	assert.Equal(t, "drivers-licence-pdf", store.documents[0].StorageKey)
	require.Len(t, store.history, 1)
	assert.Equal(t, models.VerificationStatusPending, store.history[0].PreviousStatus)
	assert.Equal(t, models.VerificationStatusVerified, store.history[0].NewStatus)
}

func TestInitiateConvertsProviderErrorToFailedRecord(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "vevo", verifyErr: errors.New("gateway timeout")}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeWorkRights: provider,
	})

	outcome, err := o.Initiate(context.Background(), workerID, models.VerificationTypeWorkRights, map[string]string{}, nil)

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, models.VerificationStatusFailed, outcome.Status)
	assert.Contains(t, outcome.ErrorMessage, "gateway timeout")

	record, err := store.FindRecord(context.Background(), workerID, models.VerificationTypeWorkRights)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusFailed, record.Status)
}

func TestInitiateFirmRejectionIsNotRetried(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{
		name: "wwcc-registry",
		verifyResult: &Result{
			Success:      false,
			Status:       models.VerificationStatusFailed,
			ErrorMessage: "applicant is barred",
		},
	}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeWWCC: provider,
	})

	outcome, err := o.Initiate(context.Background(), workerID, models.VerificationTypeWWCC, map[string]string{}, nil)

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, 1, provider.verifyCalls)

	// a firm rejection on a required check rejects the worker
	worker, err := store.FindWorker(context.Background(), workerID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkerStatusRejected, worker.Status)
}

func TestInitiateReusesExistingRecord(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "greenid", verifyResult: verifiedResult("req-1")}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeIdentity: provider,
	})

	first, err := o.Initiate(context.Background(), workerID, models.VerificationTypeIdentity, nil, nil)
	require.NoError(t, err)
	second, err := o.Initiate(context.Background(), workerID, models.VerificationTypeIdentity, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.RecordID, second.RecordID)
	records, err := store.ListRecords(context.Background(), workerID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInitiateLockBusy(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "greenid", verifyResult: verifiedResult("req-1")}
	o := newTestOrchestrator(store, &fakeLocker{busy: true}, map[models.VerificationType]Provider{
		models.VerificationTypeIdentity: provider,
	})

	outcome, err := o.Initiate(context.Background(), workerID, models.VerificationTypeIdentity, nil, nil)

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "already in flight")
	assert.Equal(t, 0, provider.verifyCalls)
}

func TestInitiateReleasesLockItAcquired(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	locker := &fakeLocker{}
	provider := &stubProvider{name: "greenid", verifyResult: verifiedResult("req-1")}
	o := newTestOrchestrator(store, locker, map[models.VerificationType]Provider{
		models.VerificationTypeIdentity: provider,
	})

	_, err := o.Initiate(context.Background(), workerID, models.VerificationTypeIdentity, nil, nil)

	require.NoError(t, err)
	require.Len(t, locker.acquired, 1)
	assert.Equal(t, locker.acquired, locker.released)
}

func TestInitiateLockOutageDoesNotReleaseForeignLock(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	locker := &fakeLocker{acquireErr: errors.New("lock store unavailable")}
	provider := &stubProvider{name: "greenid", verifyResult: verifiedResult("req-1")}
	o := newTestOrchestrator(store, locker, map[models.VerificationType]Provider{
		models.VerificationTypeIdentity: provider,
	})

	outcome, err := o.Initiate(context.Background(), workerID, models.VerificationTypeIdentity, nil, nil)

	// the lock is advisory: the verification proceeds unlocked
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, provider.verifyCalls)

	// a request that never took the lock must not delete someone else's
	assert.Empty(t, locker.released)
}

func TestInitiateAllContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	providers := map[models.VerificationType]Provider{
		models.VerificationTypeIdentity:   &stubProvider{name: "greenid", verifyResult: verifiedResult("id-1")},
		models.VerificationTypeWorkRights: &stubProvider{name: "vevo", verifyErr: fmt.Errorf("connection refused")},
		models.VerificationTypeWWCC:       &stubProvider{name: "wwcc-registry", verifyResult: verifiedResult("wwcc-1")},
	}
	o := newTestOrchestrator(store, &fakeLocker{}, providers)

	outcomes := o.InitiateAll(context.Background(), workerID, map[models.VerificationType]map[string]string{
		models.VerificationTypeIdentity:   {"given_name": "Ana"},
		models.VerificationTypeWorkRights: {"passport_number": "PA1234567"},
		models.VerificationTypeWWCC:       {"card_number": "WWC1234567E"},
	}, nil)

	require.Len(t, outcomes, 3)
	byType := make(map[models.VerificationType]Outcome, len(outcomes))
	for _, outcome := range outcomes {
		byType[outcome.Type] = outcome
	}
	assert.True(t, byType[models.VerificationTypeIdentity].Success)
	assert.False(t, byType[models.VerificationTypeWorkRights].Success)
	assert.True(t, byType[models.VerificationTypeWWCC].Success)

	// the failed check is recorded alongside the successes
	records, err := store.ListRecords(context.Background(), workerID)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestCheckStatusWithoutProviderRequestIDReturnsStored(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "abn-checksum"}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeBusinessNumber: provider,
	})

	record := &models.VerificationRecord{
		WorkerID:         workerID,
		VerificationType: models.VerificationTypeBusinessNumber,
		Status:           models.VerificationStatusVerified,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))

	outcome, err := o.CheckStatus(context.Background(), record.ID)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.VerificationStatusVerified, outcome.Status)
	assert.Equal(t, 0, provider.statusCalls)
}

func TestCheckStatusPollErrorDoesNotOverwriteRecord(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "wwcc-registry", statusErr: errors.New("registry unavailable")}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeWWCC: provider,
	})

	requestID := "wwcc-42"
	record := &models.VerificationRecord{
		WorkerID:          workerID,
		VerificationType:  models.VerificationTypeWWCC,
		Status:            models.VerificationStatusInProgress,
		ProviderRequestID: &requestID,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))

	outcome, err := o.CheckStatus(context.Background(), record.ID)

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "registry unavailable")

	stored, err := store.FindRecordByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusInProgress, stored.Status)
}

func TestCheckStatusAppliesProviderResult(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "wwcc-registry", statusResult: verifiedResult("wwcc-42")}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeWWCC: provider,
	})

	requestID := "wwcc-42"
	record := &models.VerificationRecord{
		WorkerID:          workerID,
		VerificationType:  models.VerificationTypeWWCC,
		Status:            models.VerificationStatusInProgress,
		ProviderRequestID: &requestID,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))

	outcome, err := o.CheckStatus(context.Background(), record.ID)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.VerificationStatusVerified, outcome.Status)

	stored, err := store.FindRecordByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusVerified, stored.Status)
	require.Len(t, store.history, 1)
}

func TestRecheckRequiresProviderSubmission(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "greenid"}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeIdentity: provider,
	})

	record := &models.VerificationRecord{
		WorkerID:         workerID,
		VerificationType: models.VerificationTypeIdentity,
		Status:           models.VerificationStatusPending,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))

	outcome, err := o.Recheck(context.Background(), record.ID)

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "requires a completed provider submission")
	assert.Equal(t, 0, provider.recheckCalls)
}

func TestRecheckCanRecoverExpiredRecord(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "vevo", recheckResult: verifiedResult("vevo-7")}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeWorkRights: provider,
	})

	requestID := "vevo-7"
	record := &models.VerificationRecord{
		WorkerID:          workerID,
		VerificationType:  models.VerificationTypeWorkRights,
		Status:            models.VerificationStatusExpired,
		ProviderRequestID: &requestID,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))

	outcome, err := o.Recheck(context.Background(), record.ID)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.VerificationStatusVerified, outcome.Status)
	assert.Equal(t, 1, provider.recheckCalls)
}

func TestRecheckNotSupportedReturnsStoredStatus(t *testing.T) {
	store := newFakeStore()
	workerID := store.addWorker()
	provider := &stubProvider{name: "abn-checksum", recheckErr: ErrNotSupported}
	o := newTestOrchestrator(store, &fakeLocker{}, map[models.VerificationType]Provider{
		models.VerificationTypeBusinessNumber: provider,
	})

	requestID := "abn-1"
	record := &models.VerificationRecord{
		WorkerID:          workerID,
		VerificationType:  models.VerificationTypeBusinessNumber,
		Status:            models.VerificationStatusVerified,
		ProviderRequestID: &requestID,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))

	outcome, err := o.Recheck(context.Background(), record.ID)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.VerificationStatusVerified, outcome.Status)
}
