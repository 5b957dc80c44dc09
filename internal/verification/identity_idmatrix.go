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

// IDMatrixAdapter verifies identity documents through the IDMatrix assessment
// API. Semantically interchangeable with GreenID; only the wire shape differs.
type IDMatrixAdapter struct {
	api      *apiClient
	retryCfg retry.Config
}

type idMatrixAssessmentRequest struct {
	ClientReference string             `json:"client_reference"`
	ConsentObtained bool               `json:"consent_obtained"`
	Individual      idMatrixIndividual `json:"individual"`
}

type idMatrixIndividual struct {
	FirstName      string            `json:"first_name"`
	FamilyName     string            `json:"family_name"`
	DateOfBirth    string            `json:"date_of_birth"`
	IdentityDoc    string            `json:"identity_document_type"`
	DocumentFields map[string]string `json:"document_fields"`
}

type idMatrixAssessmentResponse struct {
	AssessmentID string `json:"assessment_id"`
	Outcome      string `json:"outcome"` // ACCEPT | REJECT | REFER
	Reason       string `json:"reason,omitempty"`
}

// NewIDMatrixAdapter creates an IDMatrix-backed identity adapter
func NewIDMatrixAdapter(cfg config.IDMatrixConfig) *IDMatrixAdapter {
	return &IDMatrixAdapter{
		api: newAPIClient(cfg.BaseURL, map[string]string{
			"X-Client-Id": cfg.ClientID,
			"X-Secret":    cfg.Secret,
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier stored on verification records
func (m *IDMatrixAdapter) Name() string { return "idmatrix" }

// Verify submits an identity assessment to IDMatrix
func (m *IDMatrixAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	fields, failure := parseIdentityRequest(req)
	if failure != nil {
		return failure, nil
	}

	docFields := map[string]string{}
	switch fields.documentType {
	case models.DocumentTypeDriversLicence:
		docFields["licence_number"] = fields.licenceNumber
		docFields["state_of_issue"] = fields.licenceState
	case models.DocumentTypePassport:
		docFields["passport_number"] = fields.passportNumber
		docFields["country_of_issue"] = fields.passportCountry
	}

	payload := idMatrixAssessmentRequest{
		ClientReference: req.WorkerID.String(),
		ConsentObtained: true,
		Individual: idMatrixIndividual{
			FirstName:      fields.firstName,
			FamilyName:     fields.lastName,
			DateOfBirth:    fields.dateOfBirth,
			IdentityDoc:    string(fields.documentType),
			DocumentFields: docFields,
		},
	}

	var status int
	var body []byte
	err := retry.Do(ctx, m.retryCfg, func() error {
		var callErr error
		status, body, callErr = m.api.doJSON(ctx, http.MethodPost, "/assessments", payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("idmatrix assessment failed: %w", err)
	}

	return m.mapResponse(status, body)
}

// GetStatus polls IDMatrix for the current assessment outcome
func (m *IDMatrixAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, m.retryCfg, func() error {
		var callErr error
		status, body, callErr = m.api.doJSON(ctx, http.MethodGet, "/assessments/"+providerRequestID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("idmatrix status lookup failed: %w", err)
	}
	return m.mapResponse(status, body)
}

// Recheck re-runs an existing assessment against refreshed data sources
func (m *IDMatrixAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	var status int
	var body []byte
	err := retry.Do(ctx, m.retryCfg, func() error {
		var callErr error
		status, body, callErr = m.api.doJSON(ctx, http.MethodPost, "/assessments/"+providerRequestID+"/reassess", nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("idmatrix recheck failed: %w", err)
	}
	return m.mapResponse(status, body)
}

func (m *IDMatrixAdapter) mapResponse(status int, body []byte) (*Result, error) {
	var resp idMatrixAssessmentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse idmatrix response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := resp.Reason
		if msg == "" {
			msg = fmt.Sprintf("identity assessment rejected (status %d)", status)
		}
		return failedResult(msg), nil
	}

	result := &Result{
		ProviderRequestID: resp.AssessmentID,
		ProviderResponse:  rawJSON(body),
		Metadata:          models.JSON{"outcome": resp.Outcome},
	}

	switch resp.Outcome {
	case "ACCEPT":
		result.Success = true
		result.Status = models.VerificationStatusVerified
	case "REFER":
		// manual review on the provider side, poll later
		result.Success = true
		result.Status = models.VerificationStatusInProgress
	case "REJECT":
		result.Status = models.VerificationStatusFailed
		result.ErrorMessage = resp.Reason
		if result.ErrorMessage == "" {
			result.ErrorMessage = "identity assessment rejected"
		}
	default:
		result.Success = true
		result.Status = models.VerificationStatusPending
	}

	return result, nil
}
