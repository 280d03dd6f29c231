package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetReads handles GET /api/reads
func GetReads(c *gin.Context) {
	query := database.DB.Model(&models.CaptureRecord{})

	if c.Query("hotlistOnly") == "true" {
		query = query.Where("hotlist_match = ?", true)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("plate LIKE ?", "%"+search+"%")
	}
	if camera := c.Query("camera"); camera != "" {
		query = query.Where("camera_id = ?", camera)
	}

	limit := 50
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

	var reads []models.CaptureRecord
	if err := query.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&reads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reads":  reads,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetRead handles GET /api/reads/:id
func GetRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid read ID"})
		return
	}

	var read models.CaptureRecord
	if err := database.DB.First(&read, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Read not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch read"})
		return
	}

	c.JSON(http.StatusOK, read)
}

// GetStats handles GET /api/stats
func GetStats(c *gin.Context) {
	var totalReads int64
	database.DB.Model(&models.CaptureRecord{}).Count(&totalReads)

	var totalMatches int64
	database.DB.Model(&models.CaptureRecord{}).Where("hotlist_match = ?", true).Count(&totalMatches)

	var totalGroups int64
	database.DB.Model(&models.HotlistGroup{}).Where("is_active = ?", true).Count(&totalGroups)

	var totalVehicles int64
	database.DB.Model(&models.VehicleRecord{}).Where("is_active = ?", true).Count(&totalVehicles)

	var totalDevices int64
	database.DB.Model(&models.DeviceSource{}).Count(&totalDevices)

	matchRate := 0.0
	if totalReads > 0 {
		matchRate = float64(totalMatches) / float64(totalReads) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"totalReads":     totalReads,
		"totalMatches":   totalMatches,
		"matchRate":      matchRate,
		"activeGroups":   totalGroups,
		"activeVehicles": totalVehicles,
		"devices":        totalDevices,
	})
}
