package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/backend/internal/models"
)

func TestABNVerifyValidNumber(t *testing.T) {
	adapter := NewABNAdapter()

	result, err := adapter.Verify(context.Background(), Request{
		Data: map[string]string{
			"business_number": "51 824 753 556",
			"entity_name":     "Bright Care Services Pty Ltd",
		},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.VerificationStatusVerified, result.Status)
	assert.Equal(t, "51824753556", result.Metadata["abn"])
	assert.Equal(t, "Bright Care Services Pty Ltd", result.Metadata["entity_name"])
	// checksum checks have nothing to poll later
	assert.Empty(t, result.ProviderRequestID)
}

func TestABNVerifyChecksumFailure(t *testing.T) {
	adapter := NewABNAdapter()

	result, err := adapter.Verify(context.Background(), Request{
		Data: map[string]string{"business_number": "51824753557"},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.VerificationStatusFailed, result.Status)
}

func TestABNStatusOperationsNotSupported(t *testing.T) {
	adapter := NewABNAdapter()

	_, err := adapter.GetStatus(context.Background(), "ref")
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = adapter.Recheck(context.Background(), "ref")
	assert.ErrorIs(t, err, ErrNotSupported)
}
