package models

import (
	"time"
)

// Priority enum - urgency of a hotlist entry
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsUrgent reports whether this priority triggers a STOP action at the roadside.
func (p Priority) IsUrgent() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// BinaryDataType enum - kind of image attached to a capture
type BinaryDataType string

const (
	BinaryDataPlate   BinaryDataType = "P"
	BinaryDataContext BinaryDataType = "C"
)

// HotlistGroup model - a named set of vehicles of interest.
// Revision is bumped through store.BumpGroupRevision on every mutation
// to the group or its membership; devices compare it against their own
// copy to detect staleness.
type HotlistGroup struct {
	ID       int64    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name     string   `gorm:"column:name;uniqueIndex" json:"name"`
	Priority Priority `gorm:"column:priority;default:medium" json:"priority"`
	IsActive bool     `gorm:"column:is_active;default:true;index" json:"isActive"`
	Revision int      `gorm:"column:revision;default:1" json:"revision"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (HotlistGroup) TableName() string {
	return "hotlist_groups"
}

// VehicleRecord model - one vehicle in a hotlist group, carrying the 16
// regulation-mandated fields shipped to devices. Plates are not unique:
// the same VRM may sit in several groups.
type VehicleRecord struct {
	ID             int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	HotlistGroupID int64  `gorm:"column:hotlist_group_id;index" json:"hotlistGroupId"`
	Plate          string `gorm:"column:plate;index" json:"plate"`

	Make     *string  `gorm:"column:make" json:"make,omitempty"`
	Model    *string  `gorm:"column:model" json:"model,omitempty"`
	Colour   *string  `gorm:"column:colour" json:"colour,omitempty"`
	Category *string  `gorm:"column:category" json:"category,omitempty"` // e.g. "stolen", "wanted", "bolo"
	Priority Priority `gorm:"column:priority" json:"priority,omitempty"`

	WarningMarkers          *string    `gorm:"column:warning_markers" json:"warningMarkers,omitempty"`
	NIMCode                 *string    `gorm:"column:nim_code" json:"nimCode,omitempty"`
	IntelligenceInfo        *string    `gorm:"column:intelligence_info" json:"intelligenceInfo,omitempty"`
	ForceArea               *string    `gorm:"column:force_area" json:"forceArea,omitempty"`
	WeedDate                *time.Time `gorm:"column:weed_date" json:"weedDate,omitempty"`
	PNCID                   *string    `gorm:"column:pnc_id" json:"pncId,omitempty"`
	GPMSMarking             *string    `gorm:"column:gpms_marking" json:"gpmsMarking,omitempty"`
	CADInfo                 *string    `gorm:"column:cad_info" json:"cadInfo,omitempty"`
	OperationalInstructions *string    `gorm:"column:operational_instructions" json:"operationalInstructions,omitempty"`
	SourceReference         *string    `gorm:"column:source_reference" json:"sourceReference,omitempty"`

	IsActive bool `gorm:"column:is_active;default:true;index" json:"isActive"`
	Revision int  `gorm:"column:revision;default:1" json:"revision"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (VehicleRecord) TableName() string {
	return "vehicle_records"
}

// DeviceSource model - a field camera/device source known to the
// repository. Created lazily on first protocol contact, never
// explicitly provisioned.
type DeviceSource struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	SourceID    string `gorm:"column:source_id;uniqueIndex" json:"sourceId"`
	Description string `gorm:"column:description" json:"description"`
	IsActive    bool   `gorm:"column:is_active;default:true" json:"isActive"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (DeviceSource) TableName() string {
	return "device_sources"
}

// RevisionCursor model - per (hotlist group, device) sync progress.
// LatestRevision mirrors the group revision at the last status query;
// ExternalRevision is what the device last reported holding (-1 until
// the device syncs for the first time). The (group, device) pair is
// unique so concurrent first contact cannot double-create.
type RevisionCursor struct {
	ID             int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	HotlistGroupID int64  `gorm:"column:hotlist_group_id;uniqueIndex:idx_cursor_group_device" json:"hotlistGroupId"`
	DeviceSourceID int64  `gorm:"column:device_source_id;uniqueIndex:idx_cursor_group_device" json:"deviceSourceId"`
	HotlistName    string `gorm:"column:hotlist_name" json:"hotlistName"`

	LatestRevision   int  `gorm:"column:latest_revision;default:1" json:"latestRevision"`
	ExternalRevision int  `gorm:"column:external_revision;default:-1" json:"externalRevision"`
	IsAllocated      bool `gorm:"column:is_allocated;default:true" json:"isAllocated"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (RevisionCursor) TableName() string {
	return "revision_cursors"
}

// CaptureRecord model - one ANPR read event. The hotlist match is
// decided once at ingestion time and never revisited on later hotlist
// edits.
type CaptureRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Plate      string    `gorm:"column:plate;index" json:"plate"`
	CameraID   string    `gorm:"column:camera_id;index" json:"cameraId"`
	Location   string    `gorm:"column:location" json:"location"`
	Timestamp  time.Time `gorm:"column:timestamp;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
	Confidence int       `gorm:"column:confidence;default:0" json:"confidence"` // 0-100

	Direction *string `gorm:"column:direction" json:"direction,omitempty"`
	Speed     *int    `gorm:"column:speed" json:"speed,omitempty"`
	Lane      *int    `gorm:"column:lane" json:"lane,omitempty"`

	PlateImagePath   *string `gorm:"column:plate_image_path" json:"plateImagePath,omitempty"`
	ContextImagePath *string `gorm:"column:context_image_path" json:"contextImagePath,omitempty"`

	HotlistMatch    bool   `gorm:"column:hotlist_match;default:false;index" json:"hotlistMatch"`
	VehicleRecordID *int64 `gorm:"column:vehicle_record_id;index" json:"vehicleRecordId,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (CaptureRecord) TableName() string {
	return "capture_records"
}
