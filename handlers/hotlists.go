package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/anprhub/backend/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// VehicleInput carries the regulation fields for one hotlist vehicle.
type VehicleInput struct {
	Plate                   string          `json:"plate" binding:"required"`
	Make                    *string         `json:"make"`
	Model                   *string         `json:"model"`
	Colour                  *string         `json:"colour"`
	Category                *string         `json:"category"`
	Priority                models.Priority `json:"priority"`
	WarningMarkers          *string         `json:"warningMarkers"`
	NIMCode                 *string         `json:"nimCode"`
	IntelligenceInfo        *string         `json:"intelligenceInfo"`
	ForceArea               *string         `json:"forceArea"`
	WeedDate                *string         `json:"weedDate"` // RFC3339
	PNCID                   *string         `json:"pncId"`
	GPMSMarking             *string         `json:"gpmsMarking"`
	CADInfo                 *string         `json:"cadInfo"`
	OperationalInstructions *string         `json:"operationalInstructions"`
	SourceReference         *string         `json:"sourceReference"`
	IsActive                *bool           `json:"isActive"`
}

func (in *VehicleInput) toRecord(groupID int64) (*models.VehicleRecord, error) {
	record := &models.VehicleRecord{
		HotlistGroupID:          groupID,
		Plate:                   strings.TrimSpace(in.Plate),
		Make:                    in.Make,
		Model:                   in.Model,
		Colour:                  in.Colour,
		Category:                in.Category,
		Priority:                in.Priority,
		WarningMarkers:          in.WarningMarkers,
		NIMCode:                 in.NIMCode,
		IntelligenceInfo:        in.IntelligenceInfo,
		ForceArea:               in.ForceArea,
		PNCID:                   in.PNCID,
		GPMSMarking:             in.GPMSMarking,
		CADInfo:                 in.CADInfo,
		OperationalInstructions: in.OperationalInstructions,
		SourceReference:         in.SourceReference,
		IsActive:                true,
		Revision:                1,
	}
	if record.Plate == "" {
		return nil, fmt.Errorf("plate must not be empty")
	}
	if in.WeedDate != nil && *in.WeedDate != "" {
		parsed, err := time.Parse(time.RFC3339, *in.WeedDate)
		if err != nil {
			return nil, fmt.Errorf("invalid weedDate %q: %w", *in.WeedDate, err)
		}
		record.WeedDate = &parsed
	}
	if in.IsActive != nil {
		record.IsActive = *in.IsActive
	}
	return record, nil
}

// PostHotlistGroup handles POST /api/hotlist-groups
func PostHotlistGroup(c *gin.Context) {
	var req struct {
		Name     string          `json:"name" binding:"required"`
		Priority models.Priority `json:"priority"`
		IsActive *bool           `json:"isActive"`
		Vehicles []VehicleInput  `json:"vehicles"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	group := models.HotlistGroup{
		Name:     req.Name,
		Priority: req.Priority,
		IsActive: true,
		Revision: 1,
	}
	if group.Priority == "" {
		group.Priority = models.PriorityMedium
	}
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}

	records := make([]*models.VehicleRecord, 0, len(req.Vehicles))
	for i := range req.Vehicles {
		record, err := req.Vehicles[i].toRecord(0)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		records = append(records, record)
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		for _, record := range records {
			record.HotlistGroupID = group.ID
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			c.JSON(http.StatusConflict, gin.H{"error": "Hotlist group name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create hotlist group"})
		return
	}

	c.JSON(http.StatusCreated, group)
}

// GetHotlistGroups handles GET /api/hotlist-groups
func GetHotlistGroups(c *gin.Context) {
	query := database.DB.Model(&models.HotlistGroup{})

	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var total int64
	query.Count(&total)

	var groups []models.HotlistGroup
	if err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hotlist groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetHotlistGroup handles GET /api/hotlist-groups/:id
func GetHotlistGroup(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotlist group ID"})
		return
	}

	var group models.HotlistGroup
	if err := database.DB.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hotlist group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hotlist group"})
		return
	}

	var vehicles []models.VehicleRecord
	if err := database.DB.Where("hotlist_group_id = ?", id).Order("id ASC").Find(&vehicles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group":    group,
		"vehicles": vehicles,
	})
}

// PutHotlistGroup handles PUT /api/hotlist-groups/:id
// Any change to the group or its membership bumps the group revision.
func PutHotlistGroup(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotlist group ID"})
		return
	}

	var req struct {
		Name     *string          `json:"name"`
		Priority *models.Priority `json:"priority"`
		IsActive *bool            `json:"isActive"`
		Vehicles *[]VehicleInput  `json:"vehicles"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var group models.HotlistGroup
	if err := database.DB.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hotlist group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hotlist group"})
		return
	}

	var replacement []*models.VehicleRecord
	if req.Vehicles != nil {
		for i := range *req.Vehicles {
			record, err := (*req.Vehicles)[i].toRecord(id)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			replacement = append(replacement, record)
		}
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		updates := make(map[string]interface{})
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Priority != nil {
			updates["priority"] = *req.Priority
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) > 0 {
			if err := tx.Model(&group).Updates(updates).Error; err != nil {
				return err
			}
		}

		if req.Vehicles != nil {
			if err := tx.Where("hotlist_group_id = ?", id).Delete(&models.VehicleRecord{}).Error; err != nil {
				return err
			}
			for _, record := range replacement {
				if err := tx.Create(record).Error; err != nil {
					return err
				}
			}
		}

		return store.BumpGroupRevision(tx, id)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update hotlist group"})
		return
	}

	database.DB.First(&group, id)
	c.JSON(http.StatusOK, group)
}

// DeleteHotlistGroup handles DELETE /api/hotlist-groups/:id
func DeleteHotlistGroup(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotlist group ID"})
		return
	}

	if err := store.DeleteGroup(database.DB, id); err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hotlist group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete hotlist group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Hotlist group deleted successfully"})
}

// PostGroupVehicle handles POST /api/hotlist-groups/:id/vehicles
func PostGroupVehicle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotlist group ID"})
		return
	}

	var req VehicleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	record, err := req.toRecord(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var group models.HotlistGroup
		if err := tx.First(&group, id).Error; err != nil {
			return err
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return store.BumpGroupRevision(tx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hotlist group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add vehicle"})
		return
	}

	c.JSON(http.StatusCreated, record)
}

// PatchVehicle handles PATCH /api/vehicles/:id
func PatchVehicle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}

	var req struct {
		Make     *string          `json:"make"`
		Model    *string          `json:"model"`
		Colour   *string          `json:"colour"`
		Category *string          `json:"category"`
		Priority *models.Priority `json:"priority"`
		IsActive *bool            `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var vehicle models.VehicleRecord
	if err := database.DB.First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicle"})
		return
	}

	updates := map[string]interface{}{
		"revision": gorm.Expr("revision + 1"),
	}
	if req.Make != nil {
		updates["make"] = *req.Make
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.Colour != nil {
		updates["colour"] = *req.Colour
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&vehicle).Updates(updates).Error; err != nil {
			return err
		}
		return store.BumpGroupRevision(tx, vehicle.HotlistGroupID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update vehicle"})
		return
	}

	database.DB.First(&vehicle, id)
	c.JSON(http.StatusOK, vehicle)
}

// DeleteVehicle handles DELETE /api/vehicles/:id
func DeleteVehicle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}

	var vehicle models.VehicleRecord
	if err := database.DB.First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicle"})
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.VehicleRecord{}, id).Error; err != nil {
			return err
		}
		return store.BumpGroupRevision(tx, vehicle.HotlistGroupID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete vehicle"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// canonicalCSVHeader enumerates the recognized CSV header spellings and
// maps each to its canonical field. Unknown headers are a validation
// error, not silently dropped.
func canonicalCSVHeader(key string) (string, bool) {
	switch key {
	case "license_plate", "licence_plate", "vrm", "plate":
		return "plate", true
	case "vehicle_make", "make":
		return "make", true
	case "vehicle_model", "model":
		return "model", true
	case "vehicle_color", "vehicle_colour", "color", "colour":
		return "colour", true
	case "category":
		return "category", true
	case "priority":
		return "priority", true
	case "warning_markers", "warnings":
		return "warning_markers", true
	case "nim_code", "nim":
		return "nim_code", true
	case "intelligence_information", "intelligence", "info":
		return "intelligence_info", true
	case "force_area", "force":
		return "force_area", true
	case "pnc_id", "pnc":
		return "pnc_id", true
	}
	return "", false
}

// UploadHotlistCSV handles POST /api/hotlist-groups/:id/upload-csv
func UploadHotlistCSV(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotlist group ID"})
		return
	}

	var group models.HotlistGroup
	if err := database.DB.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hotlist group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hotlist group"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	records, err := parseVehicleCSV(file, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return store.BumpGroupRevision(tx, id)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store vehicles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("Successfully uploaded %d vehicles to hotlist group '%s'", len(records), group.Name),
		"vehiclesAdded": len(records),
	})
}

// parseVehicleCSV reads a header row, validates every header against
// the synonym table, and builds vehicle records. Rows without a plate
// are skipped.
func parseVehicleCSV(r io.Reader, groupID int64) ([]*models.VehicleRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	fields := make([]string, len(header))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(raw))
		canonical, ok := canonicalCSVHeader(key)
		if !ok {
			return nil, fmt.Errorf("unrecognized CSV header %q", raw)
		}
		fields[i] = canonical
	}

	var records []*models.VehicleRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		record := &models.VehicleRecord{
			HotlistGroupID: groupID,
			IsActive:       true,
			Revision:       1,
		}
		for i, value := range row {
			value = strings.TrimSpace(value)
			if value == "" || i >= len(fields) {
				continue
			}
			v := value
			switch fields[i] {
			case "plate":
				record.Plate = v
			case "make":
				record.Make = &v
			case "model":
				record.Model = &v
			case "colour":
				record.Colour = &v
			case "category":
				record.Category = &v
			case "priority":
				record.Priority = models.Priority(strings.ToLower(v))
			case "warning_markers":
				record.WarningMarkers = &v
			case "nim_code":
				record.NIMCode = &v
			case "intelligence_info":
				record.IntelligenceInfo = &v
			case "force_area":
				record.ForceArea = &v
			case "pnc_id":
				record.PNCID = &v
			}
		}
		if record.Plate == "" {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
