package handlers

import (
	"errors"
	"net/http"

	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetDevices handles GET /api/devices
func GetDevices(c *gin.Context) {
	var devices []models.DeviceSource
	if err := database.DB.Order("source_id ASC").Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
}

// GetDevice handles GET /api/devices/:sourceId. It returns the device
// together with its per-hotlist revision cursors. Source IDs are
// free-form strings assigned by the capture devices themselves, so the
// path parameter is matched verbatim.
func GetDevice(c *gin.Context) {
	sourceID := c.Param("sourceId")

	var device models.DeviceSource
	if err := database.DB.Where("source_id = ?", sourceID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch device"})
		return
	}

	var cursors []models.RevisionCursor
	if err := database.DB.Where("device_source_id = ?", device.ID).Order("hotlist_group_id ASC").Find(&cursors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cursors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"device": device, "cursors": cursors})
}
