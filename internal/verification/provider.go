// Package verification contains the provider adapters, the orchestrator and
// the worker status aggregator that together turn many independent external
// background checks into one eligibility decision per worker.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/careshift/backend/internal/models"
	"github.com/google/uuid"
)

// ErrNotSupported is returned by adapters whose check has no provider-side
// operation for the call (checksum-only checks cannot be polled or rechecked).
var ErrNotSupported = errors.New("operation not supported by this provider")

// Request carries a generic verification request into an adapter
type Request struct {
	WorkerID  uuid.UUID
	Type      models.VerificationType
	Data      map[string]string
	Documents []DocumentInput
}

// DocumentInput references one piece of uploaded evidence. Only the file
// reference travels through this system, never the bytes.
type DocumentInput struct {
	Type     models.DocumentType
	FileURL  string
	FileName string
}

// Result is an adapter's normalized view of a provider response.
//
// A firm rejection is Success=false with Status FAILED and must be returned
// without error so callers never retry it. Transient transport problems are
// returned as errors after the adapter's own retry policy is exhausted.
type Result struct {
	Success           bool
	Status            models.VerificationStatus
	ProviderRequestID string
	ProviderResponse  models.JSON
	Metadata          models.JSON
	ExpiresAt         *time.Time
	ErrorMessage      string
	RequiresManual    bool
}

// Provider is implemented once per verification type. Adapters translate a
// generic request into a provider-specific call and map the provider's
// payload back into a Result.
type Provider interface {
	Name() string
	Verify(ctx context.Context, req Request) (*Result, error)
	GetStatus(ctx context.Context, providerRequestID string) (*Result, error)
	Recheck(ctx context.Context, providerRequestID string) (*Result, error)
}

// resultGater is implemented by adapters whose verified verdict depends on
// the worker's other records. Verify applies the gate itself; the
// orchestrator applies it to poll and recheck results, since GetStatus and
// Recheck only see a provider request id.
type resultGater interface {
	gateResult(ctx context.Context, workerID uuid.UUID, result *Result)
}

// failedResult builds a firm-rejection result
func failedResult(message string) *Result {
	return &Result{
		Success:      false,
		Status:       models.VerificationStatusFailed,
		ErrorMessage: message,
	}
}

// requireFields checks that every named field is present and non-empty,
// returning a firm validation failure naming the first one missing.
func requireFields(data map[string]string, fields ...string) *Result {
	for _, f := range fields {
		if data[f] == "" {
			return failedResult("missing required field: " + f)
		}
	}
	return nil
}
