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

// GreenIDAdapter verifies identity documents through the GreenID registration
// and data-source matching API.
type GreenIDAdapter struct {
	api      *apiClient
	retryCfg retry.Config
}

type greenIDRegisterRequest struct {
	AccountID   string            `json:"accountId"`
	GivenName   string            `json:"givenName"`
	Surname     string            `json:"surname"`
	DateOfBirth string            `json:"dob"`
	Sources     []greenIDSource   `json:"sources"`
	ExtraData   map[string]string `json:"extraData,omitempty"`
}

type greenIDSource struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

type greenIDRegisterResponse struct {
	VerificationID string              `json:"verificationId"`
	OverallStatus  string              `json:"overallState"`
	SourceResults  []greenIDSourceItem `json:"sourceResults"`
	Error          string              `json:"error,omitempty"`
}

type greenIDSourceItem struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// NewGreenIDAdapter creates a GreenID-backed identity adapter
func NewGreenIDAdapter(cfg config.GreenIDConfig) *GreenIDAdapter {
	return &GreenIDAdapter{
		api: newAPIClient(cfg.BaseURL, map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
			"X-Account-Id":  cfg.AccountID,
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (g *GreenIDAdapter) Name() string { return "greenid" }

// Verify registers the person and their document with GreenID and maps the
// outcome. Data-source mismatches come back as a firm failure, never retried.
func (g *GreenIDAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	fields, failure := parseIdentityRequest(req)
	if failure != nil {
		return failure, nil
	}

	payload := greenIDRegisterRequest{
		GivenName:   fields.firstName,
		Surname:     fields.lastName,
		DateOfBirth: fields.dateOfBirth,
		ExtraData:   map[string]string{"worker_ref": req.WorkerID.String()},
	}
	switch fields.documentType {
	case models.DocumentTypeDriversLicence:
		payload.Sources = []greenIDSource{{
			Name: "actrego", // state-specific source name is resolved server-side
			Fields: map[string]string{
				"licence_number": fields.licenceNumber,
				"state":          fields.licenceState,
			},
		}}
	case models.DocumentTypePassport:
		payload.Sources = []greenIDSource{{
			Name: "passport",
			Fields: map[string]string{
				"passport_number": fields.passportNumber,
				"country":         fields.passportCountry,
			},
		}}
	}

	var status int
	var body []byte
	err := retry.Do(ctx, g.retryCfg, func() error {
		var callErr error
		status, body, callErr = g.api.doJSON(ctx, http.MethodPost, "/register", payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("greenid register failed: %w", err)
	}

	return g.mapResponse(status, body)
}

// GetStatus polls GreenID for the current verification state
func (g *GreenIDAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, g.retryCfg, func() error {
		var callErr error
		status, body, callErr = g.api.doJSON(ctx, http.MethodGet, "/verification/"+providerRequestID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("greenid status lookup failed: %w", err)
	}
	return g.mapResponse(status, body)
}

// Recheck asks GreenID to re-run data-source matching for an existing registration
func (g *GreenIDAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, g.retryCfg, func() error {
		var callErr error
		status, body, callErr = g.api.doJSON(ctx, http.MethodPost, "/verification/"+providerRequestID+"/recheck", nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("greenid recheck failed: %w", err)
	}
	return g.mapResponse(status, body)
}

func (g *GreenIDAdapter) mapResponse(status int, body []byte) (*Result, error) {
	var resp greenIDRegisterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse greenid response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("identity verification rejected (status %d)", status)
		}
		return failedResult(msg), nil
	}

	result := &Result{
		ProviderRequestID: resp.VerificationID,
		ProviderResponse:  rawJSON(body),
		Metadata:          models.JSON{"overall_state": resp.OverallStatus},
	}

	switch resp.OverallStatus {
	case "VERIFIED", "VERIFIED_WITH_CHANGES":
		result.Success = true
		result.Status = models.VerificationStatusVerified
	case "IN_PROGRESS", "PENDING":
		result.Success = true
		result.Status = models.VerificationStatusInProgress
	case "LOCKED_OUT", "FAILED":
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = "identity could not be verified against government data sources"
	default:
		result.Success = true
		result.Status = models.VerificationStatusPending
	}

	return result, nil
}
