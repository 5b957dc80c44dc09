package verification

import (
	"github.com/careshift/backend/internal/config"
	"github.com/careshift/backend/internal/models"
)

// identityFields is the document-bearing identity data both alternates need.
// The two providers differ only in request/response shape, not semantics.
type identityFields struct {
	firstName    string
	lastName     string
	dateOfBirth  string
	documentType models.DocumentType
	// driver's licence
	licenceNumber string
	licenceState  string
	// passport
	passportNumber  string
	passportCountry string
}

// parseIdentityRequest validates the check-specific data shared by both
// identity providers. A non-nil Result is a firm validation failure.
func parseIdentityRequest(req Request) (*identityFields, *Result) {
	if res := requireFields(req.Data, "first_name", "last_name", "date_of_birth", "document_type"); res != nil {
		return nil, res
	}

	f := &identityFields{
		firstName:    req.Data["first_name"],
		lastName:     req.Data["last_name"],
		dateOfBirth:  req.Data["date_of_birth"],
		documentType: models.DocumentType(req.Data["document_type"]),
	}

	switch f.documentType {
	case models.DocumentTypeDriversLicence:
		if res := requireFields(req.Data, "licence_number", "licence_state"); res != nil {
			return nil, res
		}
		f.licenceNumber = req.Data["licence_number"]
		f.licenceState = req.Data["licence_state"]
	case models.DocumentTypePassport:
		if res := requireFields(req.Data, "passport_number", "passport_country"); res != nil {
			return nil, res
		}
		f.passportNumber = req.Data["passport_number"]
		f.passportCountry = req.Data["passport_country"]
	default:
		return nil, failedResult("unsupported identity document type: " + string(f.documentType))
	}

	return f, nil
}

// NewIdentityProvider returns the identity adapter selected by configuration
func NewIdentityProvider(cfg *config.Config) Provider {
	if cfg.Verification.IdentityProvider == "idmatrix" {
		return NewIDMatrixAdapter(cfg.IDMatrix)
	}
	return NewGreenIDAdapter(cfg.GreenID)
}
