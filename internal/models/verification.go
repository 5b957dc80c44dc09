package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationType identifies one kind of background check
type VerificationType string

const (
	VerificationTypeIdentity            VerificationType = "IDENTITY"
	VerificationTypeWorkRights          VerificationType = "WORK_RIGHTS"
	VerificationTypeWWCC                VerificationType = "WWCC"
	VerificationTypeDisabilityScreening VerificationType = "DISABILITY_WORKER_SCREENING"
	VerificationTypeBusinessNumber      VerificationType = "BUSINESS_NUMBER"
	VerificationTypeTaxNumber           VerificationType = "TAX_NUMBER"
	VerificationTypeFirstAid            VerificationType = "FIRST_AID"
)

// AllVerificationTypes lists every check type in submission order.
// Identity comes first: every other check's evidentiary value depends on it.
var AllVerificationTypes = []VerificationType{
	VerificationTypeIdentity,
	VerificationTypeWorkRights,
	VerificationTypeWWCC,
	VerificationTypeDisabilityScreening,
	VerificationTypeBusinessNumber,
	VerificationTypeTaxNumber,
	VerificationTypeFirstAid,
}

// VerificationStatus represents the state of one check for one worker
type VerificationStatus string

const (
	VerificationStatusPending    VerificationStatus = "PENDING"
	VerificationStatusInProgress VerificationStatus = "IN_PROGRESS"
	VerificationStatusVerified   VerificationStatus = "VERIFIED"
	VerificationStatusFailed     VerificationStatus = "FAILED"
	VerificationStatusExpired    VerificationStatus = "EXPIRED"
	VerificationStatusSuspended  VerificationStatus = "SUSPENDED"
)

// VerificationRecord is the persisted state of one check type for one worker.
// At most one record exists per (worker, type); initiate has upsert semantics.
type VerificationRecord struct {
	Base
	WorkerID          uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_worker_verification_type" json:"worker_id"`
	Worker            Worker             `gorm:"foreignKey:WorkerID" json:"-"`
	VerificationType  VerificationType   `gorm:"type:varchar(40);not null;uniqueIndex:idx_worker_verification_type" json:"verification_type"`
	Status            VerificationStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Provider          string             `gorm:"type:varchar(100)" json:"provider"`
	ProviderRequestID *string            `gorm:"type:varchar(255);index" json:"provider_request_id"`
	ProviderResponse  JSON               `gorm:"type:jsonb" json:"provider_response"`
	Metadata          JSON               `gorm:"type:jsonb" json:"metadata"`
	VerifiedAt        *time.Time         `json:"verified_at"`
	ExpiresAt         *time.Time         `json:"expires_at"`
	ErrorMessage      *string            `gorm:"type:text" json:"error_message"`
	RequiresManual    bool               `gorm:"default:false" json:"requires_manual_verification"`
}

// DocumentType classifies evidence attached to a verification record
type DocumentType string

const (
	DocumentTypeDriversLicence DocumentType = "drivers_licence"
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeVisaGrant      DocumentType = "visa_grant"
	DocumentTypeWWCCCard       DocumentType = "wwcc_card"
	DocumentTypeCertificate    DocumentType = "certificate"
	DocumentTypeSelfie         DocumentType = "selfie"
)

// VerificationDocument is an evidence file reference attached to a record.
// The core never reads file bytes, only stores the reference.
type VerificationDocument struct {
	Base
	RecordID   uuid.UUID          `gorm:"type:uuid;not null;index" json:"record_id"`
	Record     VerificationRecord `gorm:"foreignKey:RecordID" json:"-"`
	Type       DocumentType       `gorm:"type:varchar(50);not null" json:"type"`
	FileURL    string             `gorm:"type:text;not null" json:"file_url"`
	FileName   string             `gorm:"type:varchar(255)" json:"file_name"`
	StorageKey string             `gorm:"type:varchar(255)" json:"storage_key"`
	Metadata   JSON               `gorm:"type:jsonb" json:"metadata"`
}

// VerificationHistory tracks status transitions for a verification record
type VerificationHistory struct {
	Base
	RecordID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"record_id"`
	Record         VerificationRecord `gorm:"foreignKey:RecordID" json:"-"`
	PreviousStatus VerificationStatus `gorm:"type:varchar(20);not null" json:"previous_status"`
	NewStatus      VerificationStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	Notes          *string            `gorm:"type:text" json:"notes"`
}
