package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/retry"
)

// NewWorkRightsProvider returns the work-rights adapter selected by configuration
func NewWorkRightsProvider(cfg *config.Config) Provider {
	if cfg.Verification.WorkRightsProvider == "datazoo" {
		return NewDatazooAdapter(cfg.Datazoo)
	}
	return NewVEVOAdapter(cfg.VEVO)
}

// parseWorkRightsRequest validates the passport and visa grant data shared by
// both work-rights alternates. A non-nil Result is a firm validation failure.
func parseWorkRightsRequest(req Request) *Result {
	return requireFields(req.Data, "passport_number", "passport_country", "date_of_birth", "family_name")
}

// VEVOAdapter checks visa work entitlements through a VEVO gateway
type VEVOAdapter struct {
	api      *apiClient
	retryCfg retry.Config
}

type vevoCheckRequest struct {
	PassportNumber  string `json:"passport_number"`
	CountryOfIssue  string `json:"country_of_issue"`
	DateOfBirth     string `json:"date_of_birth"`
	FamilyName      string `json:"family_name"`
	VisaGrantNumber string `json:"visa_grant_number,omitempty"`
}

type vevoCheckResponse struct {
	RequestID       string `json:"request_id"`
	WorkEntitlement string `json:"work_entitlement"` // WORK_RIGHTS | LIMITED_WORK_RIGHTS | NO_WORK_RIGHTS
	VisaSubclass    string `json:"visa_subclass"`
	VisaExpiryDate  string `json:"visa_expiry_date"`
	Message         string `json:"message,omitempty"`
}

// NewVEVOAdapter creates a VEVO-gateway work-rights adapter
func NewVEVOAdapter(cfg config.VEVOConfig) *VEVOAdapter {
	return &VEVOAdapter{
		api: newAPIClient(cfg.BaseURL, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (v *VEVOAdapter) Name() string { return "vevo" }

// Verify checks the worker's visa entitlement. A NO_WORK_RIGHTS entitlement
// is a firm rejection; the visa expiry becomes the record expiry.
func (v *VEVOAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	if failure := parseWorkRightsRequest(req); failure != nil {
		return failure, nil
	}

	payload := vevoCheckRequest{
		PassportNumber:  req.Data["passport_number"],
		CountryOfIssue:  req.Data["passport_country"],
		DateOfBirth:     req.Data["date_of_birth"],
		FamilyName:      req.Data["family_name"],
		VisaGrantNumber: req.Data["visa_grant_number"],
	}

	var status int
	var body []byte
	err := retry.Do(ctx, v.retryCfg, func() error {
		var callErr error
		status, body, callErr = v.api.doJSON(ctx, http.MethodPost, "/entitlement-checks", payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("vevo entitlement check failed: %w", err)
	}

	return v.mapResponse(status, body)
}

// GetStatus re-reads a previously submitted entitlement check
func (v *VEVOAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, v.retryCfg, func() error {
		var callErr error
		status, body, callErr = v.api.doJSON(ctx, http.MethodGet, "/entitlement-checks/"+providerRequestID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("vevo status lookup failed: %w", err)
	}
	return v.mapResponse(status, body)
}

// Recheck re-runs the entitlement check against current visa data. Visas get
// cancelled and re-granted, so a recheck can move a record in either direction.
func (v *VEVOAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, v.retryCfg, func() error {
		var callErr error
		status, body, callErr = v.api.doJSON(ctx, http.MethodPost, "/entitlement-checks/"+providerRequestID+"/refresh", nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("vevo recheck failed: %w", err)
	}
	return v.mapResponse(status, body)
}

func (v *VEVOAdapter) mapResponse(status int, body []byte) (*Result, error) {
	var resp vevoCheckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse vevo response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("entitlement check rejected (status %d)", status)
		}
		return failedResult(msg), nil
	}

	result := &Result{
		ProviderRequestID: resp.RequestID,
		ProviderResponse:  rawJSON(body),
		ExpiresAt:         parseProviderDate(resp.VisaExpiryDate),
		Metadata: models.JSON{
			"work_rights":   resp.WorkEntitlement != "NO_WORK_RIGHTS",
			"visa_subclass": resp.VisaSubclass,
		},
	}

	switch resp.WorkEntitlement {
	case "WORK_RIGHTS", "LIMITED_WORK_RIGHTS":
		result.Success = true
		result.Status = models.VerificationStatusVerified
	case "NO_WORK_RIGHTS":
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = "visa carries no work entitlement"
	default:
		result.Success = true
		result.Status = models.VerificationStatusInProgress
	}

	return result, nil
}
