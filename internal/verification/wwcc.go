package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/retry"
)

// wwccStates are the state/territory registries the check is scoped to
var wwccStates = map[string]bool{
	"NSW": true, "VIC": true, "QLD": true, "WA": true,
	"SA": true, "TAS": true, "ACT": true, "NT": true,
}

// WWCCAdapter verifies working-with-children clearances against the
// state-scoped registries. Registries answer either synchronously with a
// decided outcome or asynchronously with a reference to poll, and the
// adapter accepts both shapes.
type WWCCAdapter struct {
	api      *apiClient
	retryCfg retry.Config
}

type wwccCheckRequest struct {
	State      string `json:"state"`
	CardNumber string `json:"card_number"`
	FamilyName string `json:"family_name"`
	BirthDate  string `json:"date_of_birth"`
}

// wwccCheckResponse covers both registry response shapes: decided checks
// carry outcome/expiry_date, queued checks carry only reference/status.
type wwccCheckResponse struct {
	Reference  string `json:"reference"`
	Status     string `json:"status"`  // DECIDED | SUBMITTED | IN_REVIEW
	Outcome    string `json:"outcome"` // CLEARED | BARRED | INTERIM_BARRED
	ExpiryDate string `json:"expiry_date"`
	Message    string `json:"message,omitempty"`
}

// NewWWCCAdapter creates a WWCC registry adapter
func NewWWCCAdapter(cfg config.WWCCConfig) *WWCCAdapter {
	return &WWCCAdapter{
		api: newAPIClient(cfg.BaseURL, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (w *WWCCAdapter) Name() string { return "wwcc-registry" }

// Verify submits a clearance check to the worker's state registry
func (w *WWCCAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	if failure := requireFields(req.Data, "state", "card_number", "family_name", "date_of_birth"); failure != nil {
		return failure, nil
	}

	state := strings.ToUpper(req.Data["state"])
	if !wwccStates[state] {
		return failedResult("unknown state or territory: " + req.Data["state"]), nil
	}

	payload := wwccCheckRequest{
		State:      state,
		CardNumber: req.Data["card_number"],
		FamilyName: req.Data["family_name"],
		BirthDate:  req.Data["date_of_birth"],
	}

	var status int
	var body []byte
	err := retry.Do(ctx, w.retryCfg, func() error {
		var callErr error
		status, body, callErr = w.api.doJSON(ctx, http.MethodPost, "/"+strings.ToLower(state)+"/checks", payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("wwcc check failed: %w", err)
	}

	return w.mapResponse(status, body)
}

// GetStatus polls the registry for an asynchronously decided check
func (w *WWCCAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, w.retryCfg, func() error {
		var callErr error
		status, body, callErr = w.api.doJSON(ctx, http.MethodGet, "/checks/"+providerRequestID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("wwcc status lookup failed: %w", err)
	}
	return w.mapResponse(status, body)
}

// Recheck re-screens an existing clearance (registries re-run their
// exclusion lists against the stored card)
func (w *WWCCAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, w.retryCfg, func() error {
		var callErr error
		status, body, callErr = w.api.doJSON(ctx, http.MethodPost, "/checks/"+providerRequestID+"/rescreen", nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("wwcc recheck failed: %w", err)
	}
	return w.mapResponse(status, body)
}

func (w *WWCCAdapter) mapResponse(status int, body []byte) (*Result, error) {
	var resp wwccCheckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse wwcc response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("wwcc check rejected (status %d)", status)
		}
		return failedResult(msg), nil
	}

	result := &Result{
		ProviderRequestID: resp.Reference,
		ProviderResponse:  rawJSON(body),
		ExpiresAt:         parseProviderDate(resp.ExpiryDate),
		Metadata:          models.JSON{"registry_status": resp.Status},
	}

	// asynchronous shape: the registry queued the check for review
	if resp.Status == "SUBMITTED" || resp.Status == "IN_REVIEW" {
		result.Success = true
		result.Status = models.VerificationStatusInProgress
		return result, nil
	}

	switch resp.Outcome {
	case "CLEARED":
		result.Success = true
		result.Status = models.VerificationStatusVerified
		result.Metadata["outcome"] = resp.Outcome
	case "BARRED", "INTERIM_BARRED":
		// a firm registry bar, must never be retried
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = "applicant is barred by the state registry"
		result.Metadata["outcome"] = resp.Outcome
	default:
		result.Success = true
		result.Status = models.VerificationStatusInProgress
	}

	return result, nil
}
