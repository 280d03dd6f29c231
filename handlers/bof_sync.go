package handlers

import (
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/anprhub/backend/bof"
	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/anprhub/backend/store"
	"github.com/gin-gonic/gin"
)

// HotlistRevisionInfo is one row of a getHotlistStatus response.
type HotlistRevisionInfo struct {
	HotlistName      string `json:"hotlistName"`
	LatestRevision   int    `json:"latestRevision"`
	ExternalRevision int    `json:"externalRevision"`
	IsAllocated      bool   `json:"isAllocated"`
}

// HotlistDeltaResponse is the payload of a getHotlistUpdates call.
type HotlistDeltaResponse struct {
	HotlistName    string  `json:"hotlistName"`
	LatestRevision int     `json:"latestRevision"`
	HotlistDeltas  *string `json:"hotlistDeltas"`
	IsFileTooBig   bool    `json:"isFileTooBig"`
}

// GetHotlistRepoStatus handles GET /bof/services/UpdateHotlistsService/getHotlistRepoStatus
// Returns -1 when the device already holds the current repository
// revision, otherwise the current revision. A cheap polling
// short-circuit before the device fetches full status.
func GetHotlistRepoStatus(c *gin.Context) {
	sourceID := c.Query("sourceID")
	if sourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceID is required"})
		return
	}
	known, err := strconv.Atoi(c.DefaultQuery("revisionNumber", "-1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid revisionNumber"})
		return
	}

	// Unknown sources are never an error; first contact provisions them.
	if _, err := store.GetOrCreateDeviceSource(database.DB, sourceID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve device source"})
		return
	}

	revision, err := store.RepoRevision(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read repository revision"})
		return
	}

	if revision == known {
		c.JSON(http.StatusOK, -1)
		return
	}
	c.JSON(http.StatusOK, revision)
}

// GetHotlistStatus handles GET /bof/services/UpdateHotlistsService/getHotlistStatus
// Emits a revision row for every active hotlist group, provisioning the
// device and its cursors on the way.
func GetHotlistStatus(c *gin.Context) {
	sourceID := c.Query("sourceID")
	if sourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceID is required"})
		return
	}

	device, err := store.GetOrCreateDeviceSource(database.DB, sourceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve device source"})
		return
	}

	var groups []models.HotlistGroup
	if err := database.DB.Where("is_active = ?", true).Order("id ASC").Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hotlist groups"})
		return
	}

	result := make([]HotlistRevisionInfo, 0, len(groups))
	for i := range groups {
		group := &groups[i]
		cursor, err := store.GetOrCreateCursor(database.DB, group, device.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve revision cursor"})
			return
		}
		if err := store.RefreshCursor(database.DB, cursor, group.Revision); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh revision cursor"})
			return
		}
		result = append(result, HotlistRevisionInfo{
			HotlistName:      group.Name,
			LatestRevision:   group.Revision,
			ExternalRevision: cursor.ExternalRevision,
			IsAllocated:      cursor.IsAllocated,
		})
	}

	c.JSON(http.StatusOK, result)
}

// SetHotlistStatusRequest is the body of a setHotlistStatus call.
type SetHotlistStatusRequest struct {
	SourceID string `json:"sourceID" binding:"required"`
	Statuses []struct {
		HotlistName     string `json:"hotlistName" binding:"required"`
		CurrentRevision int    `json:"currentRevision"`
	} `json:"statuses" binding:"required"`
}

// SetHotlistStatus handles POST /bof/services/UpdateHotlistsService/setHotlistStatus
// Persists the revision each named hotlist the device claims to hold.
// Unresolvable names are skipped, not fatal to the batch.
func SetHotlistStatus(c *gin.Context) {
	var req SetHotlistStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	device, err := store.GetOrCreateDeviceSource(database.DB, req.SourceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve device source"})
		return
	}

	updated := 0
	for _, status := range req.Statuses {
		group, err := store.ResolveGroup(database.DB, status.HotlistName)
		if errors.Is(err, store.ErrGroupNotFound) {
			log.Printf("⚠️ setHotlistStatus: skipping unknown hotlist %q from %s", status.HotlistName, req.SourceID)
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve hotlist"})
			return
		}
		if _, err := store.GetOrCreateCursor(database.DB, group, device.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve revision cursor"})
			return
		}
		if err := store.SetExternalRevision(database.DB, group.ID, device.ID, status.CurrentRevision); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record external revision"})
			return
		}
		updated++
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "updated": updated})
}

// GetHotlistUpdates handles GET /bof/services/UpdateHotlistsService/getHotlistUpdates
func GetHotlistUpdates(c *gin.Context) {
	handleHotlistUpdates(c, 0)
}

// GetHotlistUpdatesRestrictSize handles GET /bof/services/UpdateHotlistsService/getHotlistUpdatesRestrictSize
func GetHotlistUpdatesRestrictSize(c *gin.Context) {
	size, err := strconv.Atoi(c.Query("size"))
	if err != nil || size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid size"})
		return
	}
	handleHotlistUpdates(c, size)
}

func handleHotlistUpdates(c *gin.Context, sizeLimit int) {
	sourceID := c.Query("sourceID")
	name := c.Query("hotlistName")
	if sourceID == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceID and hotlistName are required"})
		return
	}

	resp, err := buildHotlistUpdate(sourceID, name, sizeLimit)
	if errors.Is(err, store.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Hotlist group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build hotlist update"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetMultipleHotlistUpdates handles GET /bof/services/UpdateHotlistsService/getMultipleHotlistUpdates
func GetMultipleHotlistUpdates(c *gin.Context) {
	handleMultipleHotlistUpdates(c, 0)
}

// GetMultipleHotlistUpdatesRestrictSize handles GET /bof/services/UpdateHotlistsService/getMultipleHotlistUpdatesRestrictSize
// A single size ceiling applies to every hotlist in the batch.
func GetMultipleHotlistUpdatesRestrictSize(c *gin.Context) {
	size, err := strconv.Atoi(c.Query("size"))
	if err != nil || size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid size"})
		return
	}
	handleMultipleHotlistUpdates(c, size)
}

func handleMultipleHotlistUpdates(c *gin.Context, sizeLimit int) {
	sourceID := c.Query("sourceID")
	names := c.QueryArray("hotlistNames")
	if sourceID == "" || len(names) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceID and hotlistNames are required"})
		return
	}

	results := make([]HotlistDeltaResponse, 0, len(names))
	for _, name := range names {
		resp, err := buildHotlistUpdate(sourceID, name, sizeLimit)
		if errors.Is(err, store.ErrGroupNotFound) {
			// Unknown names are skipped rather than failing the batch.
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build hotlist update"})
			return
		}
		results = append(results, *resp)
	}

	c.JSON(http.StatusOK, results)
}

// buildHotlistUpdate resolves the group, ensures the device and its
// cursor exist, and packages the group's active membership.
func buildHotlistUpdate(sourceID, name string, sizeLimit int) (*HotlistDeltaResponse, error) {
	group, err := store.ResolveGroup(database.DB, name)
	if err != nil {
		return nil, err
	}

	device, err := store.GetOrCreateDeviceSource(database.DB, sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := store.GetOrCreateCursor(database.DB, group, device.ID); err != nil {
		return nil, err
	}

	vehicles, err := store.ActiveVehicles(database.DB, group.ID)
	if err != nil {
		return nil, err
	}

	payload, tooBig, err := bof.BuildDelta(sourceID, group, vehicles, sizeLimit)
	if err != nil {
		return nil, err
	}

	resp := &HotlistDeltaResponse{
		HotlistName:    group.Name,
		LatestRevision: group.Revision,
		IsFileTooBig:   tooBig,
	}
	if !tooBig {
		encoded := base64.StdEncoding.EncodeToString(payload)
		resp.HotlistDeltas = &encoded
	}
	return resp, nil
}
