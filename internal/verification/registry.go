package verification

import (
	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
)

// NewProviderRegistry wires one adapter per verification type. The registry
// is built once at orchestrator construction; adapters are plain dependency-
// injected values with no package-level state.
func NewProviderRegistry(cfg *config.Config, store database.Store) map[models.VerificationType]Provider {
	return map[models.VerificationType]Provider{
		models.VerificationTypeIdentity:            NewIdentityProvider(cfg),
		models.VerificationTypeWorkRights:          NewWorkRightsProvider(cfg),
		models.VerificationTypeWWCC:                NewWWCCAdapter(cfg.WWCC),
		models.VerificationTypeDisabilityScreening: NewNDISScreeningAdapter(cfg.NDIS, store),
		models.VerificationTypeBusinessNumber:      NewABNAdapter(),
		models.VerificationTypeTaxNumber:           NewTFNAdapter(store, cfg.Verification.TFNPepper),
		models.VerificationTypeFirstAid:            NewFirstAidAdapter(cfg.FirstAid),
	}
}
