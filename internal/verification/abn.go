package verification

import (
	"context"
	"time"

	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/utils"
	"github.com/careshift/backend/internal/validate"
)

// ABNAdapter validates business numbers by checksum only. Authoritative ABR
// verification needs restricted government access this system does not have,
// so the check never makes a network call. Records carry no provider request
// id, which makes status polling a stored-status no-op.
type ABNAdapter struct{}

// NewABNAdapter creates a business-number adapter
func NewABNAdapter() *ABNAdapter {
	return &ABNAdapter{}
}

// Name returns the provider identifier stored on verification records
func (a *ABNAdapter) Name() string { return "abn-checksum" }

// Verify checks the business number's format and checksum and records the
// normalized form plus any supplied entity name.
func (a *ABNAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	if failure := requireFields(req.Data, "business_number"); failure != nil {
		return failure, nil
	}

	abn, ok := validate.ValidateABN(req.Data["business_number"])
	if !ok {
		return failedResult("business number failed format or checksum validation"), nil
	}

	now := time.Now()
	metadata := models.JSON{
		"abn":       abn,
		"reference": utils.GenerateReference("ABN"),
	}
	if name := req.Data["entity_name"]; name != "" {
		metadata["entity_name"] = name
	}

	return &Result{
		Success:  true,
		Status:   models.VerificationStatusVerified,
		Metadata: metadata,
		ProviderResponse: models.JSON{
			"validated_at": now.Format(time.RFC3339),
			"method":       "checksum",
		},
	}, nil
}

// GetStatus has nothing to poll for a checksum-only check
func (a *ABNAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	return nil, ErrNotSupported
}

// Recheck has nothing to re-evaluate for a checksum-only check
func (a *ABNAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	return nil, ErrNotSupported
}
