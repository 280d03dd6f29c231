package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/anprhub/backend/bof"
	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/anprhub/backend/services"
	"github.com/anprhub/backend/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CaptureHandler serves the capture ingestion endpoints. Constructed in
// main with its collaborators; no package-level state.
type CaptureHandler struct {
	Images *services.ImageStore
	Hub    *services.AlertHub
	Push   *services.PushClient
}

// NewCaptureHandler wires the ingestion pipeline.
func NewCaptureHandler(images *services.ImageStore, hub *services.AlertHub, push *services.PushClient) *CaptureHandler {
	return &CaptureHandler{Images: images, Hub: hub, Push: push}
}

// CaptureResponse is the common ack for capture calls.
type CaptureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ReadID  *int64 `json:"readId,omitempty"`
	Created *int   `json:"createdCount,omitempty"`
}

// SendCaptureRequest is a structured capture with optional inline images.
type SendCaptureRequest struct {
	VRM                  string  `json:"vrm" binding:"required"`
	FeedID               int     `json:"feedId"`
	SourceID             int     `json:"sourceId"`
	CameraID             int     `json:"cameraId"`
	CaptureDate          string  `json:"captureDate" binding:"required"`
	ConfidencePercentage *int    `json:"confidencePercentage"`
	PlateImage           *string `json:"plateImage"`
	OverviewImage        *string `json:"overviewImage"`

	// Camera telemetry, accepted for wire compatibility.
	CameraPresetPosition *int    `json:"cameraPresetPosition"`
	CameraPan            *string `json:"cameraPan"`
	CameraTilt           *string `json:"cameraTilt"`
	CameraZoom           *string `json:"cameraZoom"`
	MotionTowardCamera   *bool   `json:"motionTowardCamera"`
}

// SendCapture handles POST /bof/services/InputCaptureWebService/sendCapture
func (h *CaptureHandler) SendCapture(c *gin.Context) {
	var req SendCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	captureTime, err := time.Parse(time.RFC3339, req.CaptureDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid captureDate, expected RFC3339"})
		return
	}

	confidence := 0
	if req.ConfidencePercentage != nil {
		confidence = *req.ConfidencePercentage
	}
	if confidence < 0 || confidence > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidencePercentage out of range 0-100"})
		return
	}

	read := &models.CaptureRecord{
		Plate:      req.VRM,
		CameraID:   strconv.Itoa(req.CameraID),
		Location:   fmt.Sprintf("Feed:%d, Source:%d, Camera:%d", req.FeedID, req.SourceID, req.CameraID),
		Timestamp:  captureTime,
		Confidence: confidence,
	}

	group, action, err := h.persistRead(read)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store capture"})
		return
	}

	// Image persistence is best-effort; the read is already committed.
	plateImage := h.attachImage(read, models.BinaryDataPlate, req.PlateImage)
	contextImage := h.attachImage(read, models.BinaryDataContext, req.OverviewImage)

	h.notifyMatch(read, group, action)
	if h.Push != nil {
		go h.Push.PushRead(read, plateImage, contextImage)
	}

	c.JSON(http.StatusOK, CaptureResponse{
		Success: true,
		Message: fmt.Sprintf("Capture processed successfully for plate %s", req.VRM),
		ReadID:  &read.ID,
	})
}

// SendCompactCapture handles POST /bof/services/InputCaptureWebService/sendCompactCapture
func (h *CaptureHandler) SendCompactCapture(c *gin.Context) {
	var req struct {
		Capture string `json:"capture" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	capture, err := bof.ParseCompactCapture(req.Capture)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error parsing compact capture: %v", err)})
		return
	}

	read := compactToRead(capture)
	group, action, err := h.persistRead(read)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store capture"})
		return
	}

	h.notifyMatch(read, group, action)
	if h.Push != nil {
		go h.Push.PushRead(read, nil, nil)
	}

	c.JSON(http.StatusOK, CaptureResponse{
		Success: true,
		Message: fmt.Sprintf("Compact capture processed successfully for plate %s", capture.VRM),
		ReadID:  &read.ID,
	})
}

// SendCompoundCapture handles POST /bof/services/InputCaptureWebService/sendCompoundCapture
// Up to 50 compact strings per call. Malformed entries are skipped with
// a warning; an oversized batch is rejected outright.
func (h *CaptureHandler) SendCompoundCapture(c *gin.Context) {
	var req struct {
		Captures []string `json:"captures" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Captures) > bof.MaxCompoundCaptures {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Maximum %d captures per request", bof.MaxCompoundCaptures)})
		return
	}

	reads := make([]*models.CaptureRecord, 0, len(req.Captures))
	for _, raw := range req.Captures {
		capture, err := bof.ParseCompactCapture(raw)
		if err != nil {
			log.Printf("⚠️ sendCompoundCapture: skipping malformed capture: %v", err)
			continue
		}
		reads = append(reads, compactToRead(capture))
	}

	// The parseable entries land together or not at all. Alerts are
	// held back until the batch commits.
	type matchedRead struct {
		read   *models.CaptureRecord
		group  *models.HotlistGroup
		action string
	}
	var matched []matchedRead
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, read := range reads {
			group, action, err := matchAndCreate(tx, read)
			if err != nil {
				return err
			}
			if group != nil {
				matched = append(matched, matchedRead{read: read, group: group, action: action})
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store captures"})
		return
	}
	for _, m := range matched {
		h.notifyMatch(m.read, m.group, m.action)
	}
	created := len(reads)

	c.JSON(http.StatusOK, CaptureResponse{
		Success: true,
		Message: fmt.Sprintf("Compound capture processed successfully. Created %d reads", created),
		Created: &created,
	})
}

// AddBinaryCaptureDataRequest correlates an image with an earlier
// capture by (plate, camera, timestamp).
type AddBinaryCaptureDataRequest struct {
	VRM              string                `json:"vrm" binding:"required"`
	FeedIdentifier   int                   `json:"feedIdentifier"`
	SourceIdentifier int                   `json:"sourceIdentifier"`
	CameraIdentifier int                   `json:"cameraIdentifier"`
	CaptureTime      string                `json:"captureTime" binding:"required"`
	BinaryDataType   models.BinaryDataType `json:"binaryDataType" binding:"required"`
	BinaryImage      string                `json:"binaryImage" binding:"required"`
}

// AddBinaryCaptureData handles POST /bof/services/InputBinaryDataWebService/addBinaryCaptureData
func (h *CaptureHandler) AddBinaryCaptureData(c *gin.Context) {
	var req AddBinaryCaptureDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.BinaryDataType != models.BinaryDataPlate && req.BinaryDataType != models.BinaryDataContext {
		c.JSON(http.StatusBadRequest, gin.H{"error": "binaryDataType must be P or C"})
		return
	}

	captureTime, err := time.Parse(time.RFC3339, req.CaptureTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid captureTime, expected RFC3339"})
		return
	}
	imageData, err := base64.StdEncoding.DecodeString(req.BinaryImage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 image data"})
		return
	}

	cameraID := strconv.Itoa(req.CameraIdentifier)

	var read models.CaptureRecord
	err = database.DB.Where("plate = ? AND camera_id = ? AND timestamp = ?", req.VRM, cameraID, captureTime).
		First(&read).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No prior capture for this image; create a zero-confidence
		// read so the image still lands somewhere findable.
		fresh := &models.CaptureRecord{
			Plate:      req.VRM,
			CameraID:   cameraID,
			Location:   fmt.Sprintf("Feed:%d, Source:%d, Camera:%d", req.FeedIdentifier, req.SourceIdentifier, req.CameraIdentifier),
			Timestamp:  captureTime,
			Confidence: 0,
		}
		group, action, err := h.persistRead(fresh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store capture"})
			return
		}
		h.notifyMatch(fresh, group, action)
		read = *fresh
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up capture"})
		return
	}

	kind := services.ImageKindPlate
	column := "plate_image_path"
	if req.BinaryDataType == models.BinaryDataContext {
		kind = services.ImageKindContext
		column = "context_image_path"
	}
	if path, err := h.Images.Save(kind, imageData); err != nil {
		// Best-effort: the read stays put even if the blob write fails.
		log.Printf("⚠️ addBinaryCaptureData: saving %s image for %s failed: %v", kind, req.VRM, err)
	} else if err := database.DB.Model(&models.CaptureRecord{}).
		Where("id = ?", read.ID).
		Update(column, path).Error; err != nil {
		log.Printf("⚠️ addBinaryCaptureData: recording %s image path for %s failed: %v", kind, req.VRM, err)
	}

	c.JSON(http.StatusOK, CaptureResponse{
		Success: true,
		Message: fmt.Sprintf("Binary capture data processed successfully for plate %s", req.VRM),
		ReadID:  &read.ID,
	})
}

// persistRead runs the hotlist match and stores the read in one
// transaction. Returns the matched group (nil if none) and the derived
// roadside action for alerting.
func (h *CaptureHandler) persistRead(read *models.CaptureRecord) (*models.HotlistGroup, string, error) {
	var group *models.HotlistGroup
	action := bof.ActionSilent

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		group, action, err = matchAndCreate(tx, read)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return group, action, nil
}

// matchAndCreate decides the hotlist outcome for a read and stores it
// on the supplied handle, so batch callers can share a transaction.
func matchAndCreate(tx *gorm.DB, read *models.CaptureRecord) (*models.HotlistGroup, string, error) {
	var group *models.HotlistGroup
	action := bof.ActionSilent

	vehicle, err := store.MatchVehicle(tx, read.Plate)
	if err != nil {
		return nil, "", err
	}
	if vehicle != nil {
		read.HotlistMatch = true
		read.VehicleRecordID = &vehicle.ID

		var g models.HotlistGroup
		if err := tx.First(&g, vehicle.HotlistGroupID).Error; err != nil {
			return nil, "", err
		}
		group = &g

		priority := vehicle.Priority
		if priority == "" {
			priority = g.Priority
		}
		if priority.IsUrgent() {
			action = bof.ActionStop
		}
	}
	if err := tx.Create(read).Error; err != nil {
		return nil, "", err
	}
	return group, action, nil
}

// attachImage decodes and stores an inline base64 image, updating the
// read's path column. Failures are logged, never fatal. Returns the
// decoded bytes for upstream push.
func (h *CaptureHandler) attachImage(read *models.CaptureRecord, dataType models.BinaryDataType, encoded *string) []byte {
	if encoded == nil || *encoded == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(*encoded)
	if err != nil {
		log.Printf("⚠️ sendCapture: invalid base64 %s image for %s: %v", dataType, read.Plate, err)
		return nil
	}

	kind := services.ImageKindPlate
	column := "plate_image_path"
	if dataType == models.BinaryDataContext {
		kind = services.ImageKindContext
		column = "context_image_path"
	}

	path, err := h.Images.Save(kind, data)
	if err != nil {
		log.Printf("⚠️ sendCapture: saving %s image for %s failed: %v", kind, read.Plate, err)
		return data
	}
	if err := database.DB.Model(&models.CaptureRecord{}).
		Where("id = ?", read.ID).
		Update(column, path).Error; err != nil {
		log.Printf("⚠️ sendCapture: recording %s image path for %s failed: %v", kind, read.Plate, err)
	}
	return data
}

// notifyMatch fans out a live alert for matched reads.
func (h *CaptureHandler) notifyMatch(read *models.CaptureRecord, group *models.HotlistGroup, action string) {
	if group == nil || h.Hub == nil {
		return
	}
	h.Hub.PublishMatch(read, group, action)
}

// compactToRead normalizes a parsed compact capture into a read record.
func compactToRead(capture *bof.CompactCapture) *models.CaptureRecord {
	return &models.CaptureRecord{
		Plate:      capture.VRM,
		CameraID:   strconv.Itoa(capture.CameraID),
		Location:   capture.Location(),
		Timestamp:  capture.CaptureDate,
		Confidence: capture.Confidence,
	}
}
