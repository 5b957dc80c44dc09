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

// DatazooAdapter checks visa work entitlements through the Datazoo
// aggregator. Interchangeable with the VEVO gateway adapter.
type DatazooAdapter struct {
	api      *apiClient
	retryCfg retry.Config
}

type datazooVisaRequest struct {
	PassportNo   string `json:"passportNo"`
	CountryCode  string `json:"countryCode"`
	BirthDate    string `json:"birthDate"`
	LastName     string `json:"lastName"`
	ReferenceRef string `json:"clientReference"`
}

type datazooVisaResponse struct {
	ReportID    string `json:"reportId"`
	Verified    bool   `json:"verified"`
	WorkRights  bool   `json:"workRights"`
	VisaDetails struct {
		Subclass   string `json:"subclass"`
		ExpiryDate string `json:"expiryDate"`
	} `json:"visaDetails"`
	StatusText string `json:"statusText,omitempty"`
}

// NewDatazooAdapter creates a Datazoo-backed work-rights adapter
func NewDatazooAdapter(cfg config.DatazooConfig) *DatazooAdapter {
	return &DatazooAdapter{
		api: newAPIClient(cfg.BaseURL, map[string]string{
			"X-Username": cfg.Username,
			"X-Api-Key":  cfg.APIKey,
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (d *DatazooAdapter) Name() string { return "datazoo" }

// Verify runs a visa entitlement report through Datazoo
func (d *DatazooAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	if failure := parseWorkRightsRequest(req); failure != nil {
		return failure, nil
	}

	payload := datazooVisaRequest{
		PassportNo:   req.Data["passport_number"],
		CountryCode:  req.Data["passport_country"],
		BirthDate:    req.Data["date_of_birth"],
		LastName:     req.Data["family_name"],
		ReferenceRef: req.WorkerID.String(),
	}

	var status int
	var body []byte
	err := retry.Do(ctx, d.retryCfg, func() error {
		var callErr error
		status, body, callErr = d.api.doJSON(ctx, http.MethodPost, "/au/visa", payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("datazoo visa check failed: %w", err)
	}

	return d.mapResponse(status, body)
}

// GetStatus re-reads a previously generated visa report
func (d *DatazooAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, d.retryCfg, func() error {
		var callErr error
		status, body, callErr = d.api.doJSON(ctx, http.MethodGet, "/au/visa/"+providerRequestID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("datazoo status lookup failed: %w", err)
	}
	return d.mapResponse(status, body)
}

// Recheck regenerates the visa report against current data
func (d *DatazooAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, d.retryCfg, func() error {
		var callErr error
		status, body, callErr = d.api.doJSON(ctx, http.MethodPost, "/au/visa/"+providerRequestID+"/rerun", nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("datazoo recheck failed: %w", err)
	}
	return d.mapResponse(status, body)
}

func (d *DatazooAdapter) mapResponse(status int, body []byte) (*Result, error) {
	var resp datazooVisaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse datazoo response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := resp.StatusText
		if msg == "" {
			msg = fmt.Sprintf("visa check rejected (status %d)", status)
		}
		return failedResult(msg), nil
	}

	result := &Result{
		ProviderRequestID: resp.ReportID,
		ProviderResponse:  rawJSON(body),
		ExpiresAt:         parseProviderDate(resp.VisaDetails.ExpiryDate),
		Metadata: models.JSON{
			"work_rights":   resp.WorkRights,
			"visa_subclass": resp.VisaDetails.Subclass,
		},
	}

	switch {
	case resp.Verified && resp.WorkRights:
		result.Success = true
		result.Status = models.VerificationStatusVerified
	case resp.Verified && !resp.WorkRights:
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = "visa carries no work entitlement"
	default:
		result.Success = true
		result.Status = models.VerificationStatusInProgress
	}

	return result, nil
}
