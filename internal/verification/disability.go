package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/retry"
	"github.com/google/uuid"
)

// recordReader is the slice of the store the screening adapter needs to
// compose its prerequisite checks.
type recordReader interface {
	FindRecord(ctx context.Context, workerID uuid.UUID, vType models.VerificationType) (*models.VerificationRecord, error)
}

// NDISScreeningAdapter handles the disability worker screening check. The
// screening scheme has no machine-callable submission API: applications go
// through the state portal out of band. Without a known screening id the
// adapter reports PENDING with a manual-verification flag so the aggregator
// can tell it apart from a slow automated check; with one it defers to a
// portal status lookup.
type NDISScreeningAdapter struct {
	api      *apiClient
	records  recordReader
	retryCfg retry.Config
}

type ndisScreeningResponse struct {
	ScreeningID string `json:"screening_id"`
	Status      string `json:"status"` // CLEAR | EXCLUDED | IN_PROGRESS
	ExpiryDate  string `json:"expiry_date"`
	Message     string `json:"message,omitempty"`
}

// NewNDISScreeningAdapter creates a disability worker screening adapter
func NewNDISScreeningAdapter(cfg config.NDISConfig, records recordReader) *NDISScreeningAdapter {
	return &NDISScreeningAdapter{
		api: newAPIClient(cfg.PortalURL, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
		records:  records,
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (n *NDISScreeningAdapter) Name() string { return "ndis-screening" }

// Verify records the screening as pending manual processing, or looks up the
// portal when a screening id is already known. A portal CLEAR is only
// reported as verified once the worker's identity and WWCC records support
// it; this check's evidentiary value depends on both.
func (n *NDISScreeningAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	screeningID := req.Data["screening_id"]
	if screeningID == "" {
		return &Result{
			Success:        true,
			Status:         models.VerificationStatusPending,
			RequiresManual: true,
			Metadata: models.JSON{
				"note": "no screening id supplied; application must be lodged through the state portal",
			},
		}, nil
	}

	result, err := n.lookupPortal(ctx, screeningID)
	if err != nil {
		return nil, err
	}

	n.gateResult(ctx, req.WorkerID, result)
	return result, nil
}

// gateResult downgrades a CLEAR verdict to IN_PROGRESS while the worker's
// prerequisite records do not support it. The orchestrator applies the same
// gate to poll results, which carry no worker context of their own.
func (n *NDISScreeningAdapter) gateResult(ctx context.Context, workerID uuid.UUID, result *Result) {
	if result.Status != models.VerificationStatusVerified {
		return
	}
	if blocked := n.prerequisiteGap(ctx, workerID); blocked != "" {
		result.Status = models.VerificationStatusInProgress
		if result.Metadata == nil {
			result.Metadata = models.JSON{}
		}
		result.Metadata["awaiting"] = blocked
	}
}

// GetStatus polls the portal for the screening outcome
func (n *NDISScreeningAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	return n.lookupPortal(ctx, providerRequestID)
}

// Recheck has no portal-side operation; screenings are re-lodged manually
func (n *NDISScreeningAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	return nil, ErrNotSupported
}

// prerequisiteGap names the first prerequisite record that is not yet in a
// state supporting a CLEAR screening, or returns "" when both hold.
func (n *NDISScreeningAdapter) prerequisiteGap(ctx context.Context, workerID uuid.UUID) string {
	identity, err := n.records.FindRecord(ctx, workerID, models.VerificationTypeIdentity)
	if err != nil || identity.Status != models.VerificationStatusVerified {
		return "identity verification"
	}

	wwcc, err := n.records.FindRecord(ctx, workerID, models.VerificationTypeWWCC)
	if err != nil || wwcc.Status != models.VerificationStatusVerified {
		return "working with children check"
	}
	if wwcc.ExpiresAt != nil && wwcc.ExpiresAt.Before(time.Now()) {
		return "working with children check"
	}

	return ""
}

func (n *NDISScreeningAdapter) lookupPortal(ctx context.Context, screeningID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, n.retryCfg, func() error {
		var callErr error
		status, body, callErr = n.api.doJSON(ctx, http.MethodGet, "/screenings/"+screeningID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("screening portal lookup failed: %w", err)
	}

	if status == http.StatusNotFound {
		return failedResult("no screening found for id " + screeningID), nil
	}
	if status != http.StatusOK {
		return failedResult(fmt.Sprintf("screening lookup rejected (status %d)", status)), nil
	}

	var resp ndisScreeningResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse screening response: %w", err)
	}

	result := &Result{
		ProviderRequestID: resp.ScreeningID,
		ProviderResponse:  rawJSON(body),
		ExpiresAt:         parseProviderDate(resp.ExpiryDate),
		Metadata:          models.JSON{"portal_status": resp.Status},
	}
	if result.ProviderRequestID == "" {
		result.ProviderRequestID = screeningID
	}

	switch resp.Status {
	case "CLEAR":
		result.Success = true
		result.Status = models.VerificationStatusVerified
	case "EXCLUDED":
		// a firm exclusion decision, must never be retried
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = "applicant is excluded by the screening unit"
	default:
		result.Success = true
		result.Status = models.VerificationStatusInProgress
	}

	return result, nil
}

// ensure the store satisfies the reader slice the adapter depends on
var _ recordReader = (database.Store)(nil)
