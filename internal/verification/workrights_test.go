package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/retry"
)

func newTestVEVOAdapter(baseURL string) *VEVOAdapter {
	adapter := NewVEVOAdapter(config.VEVOConfig{BaseURL: baseURL, APIKey: "test-key"})
	adapter.retryCfg = retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	return adapter
}

func workRightsRequest() Request {
	return Request{
		Type: models.VerificationTypeWorkRights,
		Data: map[string]string{
			"passport_number":  "PA1234567",
			"passport_country": "IND",
			"date_of_birth":    "1992-09-03",
			"family_name":      "Sharma",
		},
	}
}

func TestVEVOVerifyEntitled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entitlement-checks", r.URL.Path)

		var payload vevoCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "PA1234567", payload.PassportNumber)
		assert.Equal(t, "IND", payload.CountryOfIssue)

		json.NewEncoder(w).Encode(vevoCheckResponse{
			RequestID:       "vevo-101",
			WorkEntitlement: "WORK_RIGHTS",
			VisaSubclass:    "482",
			VisaExpiryDate:  "2028-11-30",
		})
	}))
	defer server.Close()

	result, err := newTestVEVOAdapter(server.URL).Verify(context.Background(), workRightsRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.VerificationStatusVerified, result.Status)
	assert.Equal(t, "vevo-101", result.ProviderRequestID)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, 2028, result.ExpiresAt.Year())
}

func TestVEVOVerifyLimitedEntitlementStillVerifies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(vevoCheckResponse{
			RequestID:       "vevo-102",
			WorkEntitlement: "LIMITED_WORK_RIGHTS",
			VisaSubclass:    "500",
		})
	}))
	defer server.Close()

	result, err := newTestVEVOAdapter(server.URL).Verify(context.Background(), workRightsRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.VerificationStatusVerified, result.Status)
	assert.Equal(t, true, result.Metadata["work_rights"])
	assert.Equal(t, "500", result.Metadata["visa_subclass"])
}

func TestVEVOVerifyNoWorkRightsIsFirmRejection(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(vevoCheckResponse{
			RequestID:       "vevo-103",
			WorkEntitlement: "NO_WORK_RIGHTS",
		})
	}))
	defer server.Close()

	result, err := newTestVEVOAdapter(server.URL).Verify(context.Background(), workRightsRequest())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.VerificationStatusFailed, result.Status)
	// a firm rejection must not be retried
	assert.Equal(t, 1, calls)
}

func TestVEVOVerifyMissingFields(t *testing.T) {
	result, err := newTestVEVOAdapter("http://unused").Verify(context.Background(), Request{
		Data: map[string]string{"passport_number": "PA1234567"},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.VerificationStatusFailed, result.Status)
}

func TestVEVOVerifyExhaustsRetriesOnOutage(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestVEVOAdapter(server.URL).Verify(context.Background(), workRightsRequest())

	require.Error(t, err)
	// initial attempt plus the configured retries
	assert.Equal(t, 4, calls)
}
