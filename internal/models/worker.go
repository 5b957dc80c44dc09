package models

import (
	"time"
)

// WorkerStatus represents a worker's overall eligibility to deliver services.
// It is derived from the worker's verification records and is never written
// directly by request handlers.
type WorkerStatus string

const (
	WorkerStatusOnboarding WorkerStatus = "ONBOARDING_IN_PROGRESS"
	WorkerStatusVerified   WorkerStatus = "VERIFIED"
	WorkerStatusSuspended  WorkerStatus = "SUSPENDED"
	WorkerStatusRejected   WorkerStatus = "REJECTED"
)

// OnboardingStatus tracks whether a worker has completed all required checks
type OnboardingStatus string

const (
	OnboardingInProgress OnboardingStatus = "IN_PROGRESS"
	OnboardingCompleted  OnboardingStatus = "COMPLETED"
)

// Worker represents a care worker undergoing or holding eligibility to deliver services
type Worker struct {
	Base
	FirstName        string           `gorm:"type:varchar(100)" json:"first_name"`
	LastName         string           `gorm:"type:varchar(100)" json:"last_name"`
	Email            string           `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	DateOfBirth      *time.Time       `json:"date_of_birth"`
	Status           WorkerStatus     `gorm:"type:varchar(30);not null;default:'ONBOARDING_IN_PROGRESS'" json:"status"`
	OnboardingStatus OnboardingStatus `gorm:"type:varchar(20);not null;default:'IN_PROGRESS'" json:"onboarding_status"`
}
