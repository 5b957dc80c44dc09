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

// firstAidUnits are the nationally recognised first-aid unit codes accepted
// for care work.
var firstAidUnits = map[string]bool{
	"HLTAID009": true, // CPR
	"HLTAID010": true, // basic emergency life support
	"HLTAID011": true, // provide first aid
	"HLTAID012": true, // first aid in an education and care setting
}

// FirstAidAdapter validates first-aid certificates against the registered
// training organisation lookup service.
type FirstAidAdapter struct {
	api      *apiClient
	retryCfg retry.Config
}

type firstAidLookupRequest struct {
	CertificateNumber string `json:"certificate_number"`
	UnitCode          string `json:"unit_code"`
	FamilyName        string `json:"family_name"`
}

type firstAidLookupResponse struct {
	LookupID    string `json:"lookup_id"`
	Verified    bool   `json:"verified"`
	Certificate struct {
		UnitCode   string `json:"unit_code"`
		RTOName    string `json:"rto_name"`
		IssueDate  string `json:"issue_date"`
		ExpiryDate string `json:"expiry_date"`
	} `json:"certificate"`
	Reason string `json:"reason,omitempty"`
}

// NewFirstAidAdapter creates a first-aid certificate adapter
func NewFirstAidAdapter(cfg config.FirstAidConfig) *FirstAidAdapter {
	return &FirstAidAdapter{
		api: newAPIClient(cfg.BaseURL, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (f *FirstAidAdapter) Name() string { return "rto-lookup" }

// Verify validates a certificate/unit-code pair with the RTO lookup service
func (f *FirstAidAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	if failure := requireFields(req.Data, "certificate_number", "unit_code", "family_name"); failure != nil {
		return failure, nil
	}
	if !firstAidUnits[req.Data["unit_code"]] {
		return failedResult("unit code is not an accepted first aid qualification: " + req.Data["unit_code"]), nil
	}

	payload := firstAidLookupRequest{
		CertificateNumber: req.Data["certificate_number"],
		UnitCode:          req.Data["unit_code"],
		FamilyName:        req.Data["family_name"],
	}

	var status int
	var body []byte
	err := retry.Do(ctx, f.retryCfg, func() error {
		var callErr error
		status, body, callErr = f.api.doJSON(ctx, http.MethodPost, "/certificates/verify", payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("rto lookup failed: %w", err)
	}

	return f.mapResponse(status, body)
}

// GetStatus re-reads a previous certificate lookup
func (f *FirstAidAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, f.retryCfg, func() error {
		var callErr error
		status, body, callErr = f.api.doJSON(ctx, http.MethodGet, "/certificates/lookups/"+providerRequestID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("rto status lookup failed: %w", err)
	}
	return f.mapResponse(status, body)
}

// Recheck re-validates the certificate, picking up RTO revocations
func (f *FirstAidAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, f.retryCfg, func() error {
		var callErr error
		status, body, callErr = f.api.doJSON(ctx, http.MethodPost, "/certificates/lookups/"+providerRequestID+"/refresh", nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("rto recheck failed: %w", err)
	}
	return f.mapResponse(status, body)
}

func (f *FirstAidAdapter) mapResponse(status int, body []byte) (*Result, error) {
	var resp firstAidLookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse rto response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := resp.Reason
		if msg == "" {
			msg = fmt.Sprintf("certificate lookup rejected (status %d)", status)
		}
		return failedResult(msg), nil
	}

	result := &Result{
		ProviderRequestID: resp.LookupID,
		ProviderResponse:  rawJSON(body),
		ExpiresAt:         parseProviderDate(resp.Certificate.ExpiryDate),
		Metadata: models.JSON{
			"unit_code": resp.Certificate.UnitCode,
			"rto_name":  resp.Certificate.RTOName,
		},
	}

	if resp.Verified {
		result.Success = true
		result.Status = models.VerificationStatusVerified
	} else {
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = resp.Reason
		if result.ErrorMessage == "" {
			result.ErrorMessage = "certificate could not be verified with the issuing RTO"
		}
	}

	return result, nil
}
