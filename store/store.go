// Package store holds the query and mutation primitives shared by the
// management API and the BOF protocol handlers. All revision bumps and
// cursor provisioning go through here so the monotonicity invariant has
// a single call site.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anprhub/backend/models"
	"gorm.io/gorm"
)

// ErrGroupNotFound is returned when a hotlist name cannot be resolved.
var ErrGroupNotFound = errors.New("hotlist group not found")

// BumpGroupRevision atomically increments a group's revision counter.
// Call it in the same transaction as the mutation it stamps.
func BumpGroupRevision(db *gorm.DB, groupID int64) error {
	result := db.Model(&models.HotlistGroup{}).
		Where("id = ?", groupID).
		UpdateColumn("revision", gorm.Expr("revision + 1"))
	if result.Error != nil {
		return fmt.Errorf("bump revision for group %d: %w", groupID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// GetOrCreateDeviceSource returns the device source for a protocol
// sourceID, provisioning it on first contact. Safe under concurrent
// first contact: the unique index on source_id rejects the duplicate
// and we re-fetch the winner's row.
func GetOrCreateDeviceSource(db *gorm.DB, sourceID string) (*models.DeviceSource, error) {
	var device models.DeviceSource
	err := db.Where("source_id = ?", sourceID).First(&device).Error
	if err == nil {
		return &device, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	device = models.DeviceSource{
		SourceID:    sourceID,
		Description: "Auto-created device for source " + sourceID,
		IsActive:    true,
	}
	if err := db.Create(&device).Error; err != nil {
		if isUniqueViolation(err) {
			if err := db.Where("source_id = ?", sourceID).First(&device).Error; err != nil {
				return nil, err
			}
			return &device, nil
		}
		return nil, fmt.Errorf("create device source %q: %w", sourceID, err)
	}
	return &device, nil
}

// GetOrCreateCursor returns the sync cursor for a (group, device) pair,
// creating it on first query. A new cursor's latest revision is seeded
// from the group's current revision (1 when the group has no active
// vehicles) and its external revision to -1, meaning the device has
// never synced this hotlist.
func GetOrCreateCursor(db *gorm.DB, group *models.HotlistGroup, deviceID int64) (*models.RevisionCursor, error) {
	var cursor models.RevisionCursor
	err := db.Where("hotlist_group_id = ? AND device_source_id = ?", group.ID, deviceID).
		First(&cursor).Error
	if err == nil {
		return &cursor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seed := group.Revision
	var activeVehicles int64
	if err := db.Model(&models.VehicleRecord{}).
		Where("hotlist_group_id = ? AND is_active = ?", group.ID, true).
		Count(&activeVehicles).Error; err != nil {
		return nil, err
	}
	if activeVehicles == 0 {
		seed = 1
	}

	cursor = models.RevisionCursor{
		HotlistGroupID:   group.ID,
		DeviceSourceID:   deviceID,
		HotlistName:      group.Name,
		LatestRevision:   seed,
		ExternalRevision: -1,
		IsAllocated:      true,
	}
	if err := db.Create(&cursor).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost the first-contact race; the pair is unique so the
			// winner's row is the cursor identity from here on.
			if err := db.Where("hotlist_group_id = ? AND device_source_id = ?", group.ID, deviceID).
				First(&cursor).Error; err != nil {
				return nil, err
			}
			return &cursor, nil
		}
		return nil, fmt.Errorf("create cursor (group %d, device %d): %w", group.ID, deviceID, err)
	}
	return &cursor, nil
}

// RefreshCursor mirrors the group's live revision into the cursor. This
// is the synchronization point that lets a device detect drift on every
// status query.
func RefreshCursor(db *gorm.DB, cursor *models.RevisionCursor, groupRevision int) error {
	if cursor.LatestRevision == groupRevision {
		return nil
	}
	cursor.LatestRevision = groupRevision
	return db.Model(&models.RevisionCursor{}).
		Where("id = ?", cursor.ID).
		Update("latest_revision", groupRevision).Error
}

// SetExternalRevision records the revision a device claims to hold for
// a hotlist. Stored only; every update fetch still ships a full
// snapshot.
func SetExternalRevision(db *gorm.DB, groupID, deviceID int64, value int) error {
	return db.Model(&models.RevisionCursor{}).
		Where("hotlist_group_id = ? AND device_source_id = ?", groupID, deviceID).
		Update("external_revision", value).Error
}

// RepoRevision returns the repository-wide revision: the maximum
// revision across active groups, 0 when there are none.
func RepoRevision(db *gorm.DB) (int, error) {
	var revision *int
	err := db.Model(&models.HotlistGroup{}).
		Where("is_active = ?", true).
		Select("MAX(revision)").
		Scan(&revision).Error
	if err != nil {
		return 0, err
	}
	if revision == nil {
		return 0, nil
	}
	return *revision, nil
}

// MatchVehicle finds the hotlist vehicle an observed plate matches, or
// nil when there is no match. Only active vehicles in active groups
// qualify; when a plate sits in several groups the winner is
// deterministic: lowest group ID, then lowest record ID.
func MatchVehicle(db *gorm.DB, plate string) (*models.VehicleRecord, error) {
	var vehicle models.VehicleRecord
	err := db.
		Joins("JOIN hotlist_groups ON hotlist_groups.id = vehicle_records.hotlist_group_id").
		Where("vehicle_records.plate = ? AND vehicle_records.is_active = ? AND hotlist_groups.is_active = ?",
			plate, true, true).
		Order("vehicle_records.hotlist_group_id ASC, vehicle_records.id ASC").
		First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ResolveGroup maps a protocol hotlist name to a group. Exact group
// name first; legacy devices report a synthetic name that is really a
// member plate, so fall back to the group owning an active vehicle with
// that plate.
func ResolveGroup(db *gorm.DB, name string) (*models.HotlistGroup, error) {
	var group models.HotlistGroup
	err := db.Where("name = ?", name).First(&group).Error
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	vehicle, err := MatchVehicle(db, name)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, ErrGroupNotFound
	}
	if err := db.First(&group, vehicle.HotlistGroupID).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// ActiveVehicles returns the active members of a group in stable order.
func ActiveVehicles(db *gorm.DB, groupID int64) ([]models.VehicleRecord, error) {
	var vehicles []models.VehicleRecord
	err := db.Where("hotlist_group_id = ? AND is_active = ?", groupID, true).
		Order("id ASC").
		Find(&vehicles).Error
	return vehicles, err
}

// DeleteGroup removes a group and cascades deletion of its vehicles and
// cursors inside one transaction.
func DeleteGroup(db *gorm.DB, groupID int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hotlist_group_id = ?", groupID).Delete(&models.VehicleRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("hotlist_group_id = ?", groupID).Delete(&models.RevisionCursor{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.HotlistGroup{}, groupID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}
		return nil
	})
}

// isUniqueViolation matches duplicate-key failures across the postgres
// and sqlite drivers without importing either.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
