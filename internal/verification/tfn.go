package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/utils"
	"github.com/careshift/backend/internal/validate"
)

// tfnDigestKey is the metadata field the duplicate-registration guard queries
const tfnDigestKey = "tfn_digest"

// tfnLookup is the slice of the store the tax-number adapter needs for its
// duplicate-registration guard.
type tfnLookup interface {
	FindRecordByMetadata(ctx context.Context, vType models.VerificationType, key, value string) (*models.VerificationRecord, error)
}

// TFNAdapter validates tax file numbers by checksum and persists only a
// one-way digest plus the last four digits. The full identifier must never
// appear in any stored field.
type TFNAdapter struct {
	records tfnLookup
	pepper  string
}

// NewTFNAdapter creates a tax-number adapter
func NewTFNAdapter(records tfnLookup, pepper string) *TFNAdapter {
	return &TFNAdapter{records: records, pepper: pepper}
}

// Name returns the provider identifier stored on verification records
func (t *TFNAdapter) Name() string { return "tfn-checksum" }

// Verify checks the tax number's checksum, rejects a number already digested
// under a different worker, and stores the digest and last-4 only.
func (t *TFNAdapter) Verify(ctx context.Context, req Request) (*Result, error) {
	if failure := requireFields(req.Data, "tax_number"); failure != nil {
		return failure, nil
	}

	tfn, ok := validate.ValidateTFN(req.Data["tax_number"])
	if !ok {
		return failedResult("tax file number failed format or checksum validation"), nil
	}

	digest := utils.HashTaxNumber(tfn, t.pepper)

	existing, err := t.records.FindRecordByMetadata(ctx, models.VerificationTypeTaxNumber, tfnDigestKey, digest)
	if err != nil && !errors.Is(err, database.ErrRecordNotFound) {
		return nil, fmt.Errorf("tax number duplicate lookup failed: %w", err)
	}
	if existing != nil && existing.WorkerID != req.WorkerID {
		return failedResult("tax file number is already registered to another worker"), nil
	}

	return &Result{
		Success: true,
		Status:  models.VerificationStatusVerified,
		Metadata: models.JSON{
			tfnDigestKey: digest,
			"tfn_last4":  validate.TFNLast4(tfn),
			"reference":  utils.GenerateReference("TFN"),
		},
		ProviderResponse: models.JSON{
			"validated_at": time.Now().Format(time.RFC3339),
			"method":       "checksum",
		},
	}, nil
}

// GetStatus has nothing to poll for a checksum-only check
func (t *TFNAdapter) GetStatus(ctx context.Context, providerRequestID string) (*Result, error) {
	return nil, ErrNotSupported
}

// Recheck has nothing to re-evaluate for a checksum-only check
func (t *TFNAdapter) Recheck(ctx context.Context, providerRequestID string) (*Result, error) {
	return nil, ErrNotSupported
}
