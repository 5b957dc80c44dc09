package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/careshift/backend/internal/database"
	"github.com/careshift/backend/internal/models"
	"github.com/careshift/backend/internal/verification"
)

// VerificationHandler handles background-check verification requests
type VerificationHandler struct {
	Store        database.Store
	Orchestrator *verification.Orchestrator
	Aggregator   *verification.Aggregator
	Log          *logrus.Logger
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(store database.Store, orchestrator *verification.Orchestrator, aggregator *verification.Aggregator, log *logrus.Logger) *VerificationHandler {
	return &VerificationHandler{
		Store:        store,
		Orchestrator: orchestrator,
		Aggregator:   aggregator,
		Log:          log,
	}
}

// documentPayload is a client-supplied supporting document reference.
type documentPayload struct {
	Type     models.DocumentType `json:"type" binding:"required"`
	FileURL  string              `json:"file_url" binding:"required"`
	FileName string              `json:"file_name"`
}

type initiateRequest struct {
	VerificationType models.VerificationType `json:"verification_type" binding:"required"`
	Data             map[string]string       `json:"data" binding:"required"`
	Documents        []documentPayload       `json:"documents"`
}

type checkPayload struct {
	Data      map[string]string `json:"data" binding:"required"`
	Documents []documentPayload `json:"documents"`
}

type initiateAllRequest struct {
	Checks map[models.VerificationType]checkPayload `json:"checks" binding:"required"`
}

// InitiateVerification starts (or restarts) a single check for a worker
func (h *VerificationHandler) InitiateVerification(c *gin.Context) {
	workerID, ok := h.workerID(c)
	if !ok {
		return
	}

	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	outcome, err := h.Orchestrator.Initiate(c.Request.Context(), workerID, req.VerificationType, req.Data, toDocumentInputs(req.Documents))
	if err != nil {
		h.Log.WithError(err).WithField("worker_id", workerID).Error("failed to initiate verification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate verification"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// InitiateAllVerifications starts every check supplied in the request body.
// Checks that fail do not prevent the others from running; the response
// carries one outcome per submitted check.
func (h *VerificationHandler) InitiateAllVerifications(c *gin.Context) {
	workerID, ok := h.workerID(c)
	if !ok {
		return
	}

	var req initiateAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Checks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one check is required"})
		return
	}

	data := make(map[models.VerificationType]map[string]string, len(req.Checks))
	documents := make(map[models.VerificationType][]verification.DocumentInput, len(req.Checks))
	for vType, check := range req.Checks {
		data[vType] = check.Data
		documents[vType] = toDocumentInputs(check.Documents)
	}

	outcomes := h.Orchestrator.InitiateAll(c.Request.Context(), workerID, data, documents)
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// ListWorkerVerifications returns every verification record for a worker
func (h *VerificationHandler) ListWorkerVerifications(c *gin.Context) {
	workerID, ok := h.workerID(c)
	if !ok {
		return
	}

	records, err := h.Orchestrator.WorkerRecords(c.Request.Context(), workerID)
	if err != nil {
		h.Log.WithError(err).WithField("worker_id", workerID).Error("failed to list verifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list verifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verifications": records})
}

// GetWorkerStatus returns the worker's aggregated verification standing
func (h *VerificationHandler) GetWorkerStatus(c *gin.Context) {
	workerID, ok := h.workerID(c)
	if !ok {
		return
	}

	worker, err := h.Store.FindWorker(c.Request.Context(), workerID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Worker not found"})
			return
		}
		h.Log.WithError(err).WithField("worker_id", workerID).Error("failed to load worker")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load worker status"})
		return
	}

	records, err := h.Store.ListRecords(c.Request.Context(), workerID)
	if err != nil {
		h.Log.WithError(err).WithField("worker_id", workerID).Error("failed to load verification records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load worker status"})
		return
	}

	summaries := make([]gin.H, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, gin.H{
			"verification_type": record.VerificationType,
			"status":            record.Status,
			"provider":          record.Provider,
			"requires_manual":   record.RequiresManual,
			"verified_at":       record.VerifiedAt,
			"expires_at":        record.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"worker_id":         worker.ID,
		"status":            worker.Status,
		"onboarding_status": worker.OnboardingStatus,
		"required_checks":   h.Aggregator.RequiredTypes(),
		"verifications":     summaries,
	})
}

// CheckVerificationStatus polls the provider for the latest status of an
// in-flight check and returns the refreshed record state
func (h *VerificationHandler) CheckVerificationStatus(c *gin.Context) {
	recordID, ok := h.recordID(c)
	if !ok {
		return
	}

	outcome, err := h.Orchestrator.CheckStatus(c.Request.Context(), recordID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Verification not found"})
			return
		}
		h.Log.WithError(err).WithField("record_id", recordID).Error("failed to check verification status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check verification status"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// RecheckVerification asks the provider to re-run an existing check
func (h *VerificationHandler) RecheckVerification(c *gin.Context) {
	recordID, ok := h.recordID(c)
	if !ok {
		return
	}

	outcome, err := h.Orchestrator.Recheck(c.Request.Context(), recordID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Verification not found"})
			return
		}
		h.Log.WithError(err).WithField("record_id", recordID).Error("failed to recheck verification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to recheck verification"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (h *VerificationHandler) workerID(c *gin.Context) (uuid.UUID, bool) {
	workerID, err := uuid.Parse(c.Param("worker_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker ID"})
		return uuid.Nil, false
	}

	if _, err := h.Store.FindWorker(c.Request.Context(), workerID); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Worker not found"})
			return uuid.Nil, false
		}
		h.Log.WithError(err).WithField("worker_id", workerID).Error("failed to load worker")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load worker"})
		return uuid.Nil, false
	}

	return workerID, true
}

func (h *VerificationHandler) recordID(c *gin.Context) (uuid.UUID, bool) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification ID"})
		return uuid.Nil, false
	}
	return recordID, true
}

func toDocumentInputs(payloads []documentPayload) []verification.DocumentInput {
	if len(payloads) == 0 {
		return nil
	}
	inputs := make([]verification.DocumentInput, 0, len(payloads))
	for _, p := range payloads {
		inputs = append(inputs, verification.DocumentInput{
			Type:     p.Type,
			FileURL:  p.FileURL,
			FileName: p.FileName,
		})
	}
	return inputs
}
