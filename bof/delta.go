// Package bof implements the wire formats of the back-office hotlist
// synchronization protocol: the 16-column delta records shipped to
// devices and the compact capture strings sent back by them.
package bof

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/anprhub/backend/models"
	"github.com/klauspost/compress/flate"
)

// Operation codes for delta archive entries. Only full refresh is
// shipped; the protocol reserves A/D for true differential updates.
const (
	OpRefresh = "R"
)

const (
	ActionStop   = "STOP"
	ActionSilent = "SILENT"
)

// DeltaColumns is the number of fields in a regulation hotlist row.
const DeltaColumns = 16

// deriveAction maps priority to the roadside action column. The record's
// own priority wins; the group priority only fills in when the record
// carries none.
func deriveAction(v *models.VehicleRecord, groupPriority models.Priority) string {
	priority := v.Priority
	if priority == "" {
		priority = groupPriority
	}
	if priority.IsUrgent() {
		return ActionStop
	}
	return ActionSilent
}

// RenderRow produces the 16 columns for one vehicle in regulation order.
func RenderRow(v *models.VehicleRecord, groupPriority models.Priority) []string {
	weedDate := ""
	if v.WeedDate != nil {
		weedDate = v.WeedDate.Format("02/01/2006")
	}
	gpms := "Unclassified"
	if v.GPMSMarking != nil && *v.GPMSMarking != "" {
		gpms = *v.GPMSMarking
	}
	// Columns 1-16: VRM, make, model, colour, action, warning markers,
	// reason, NIM (5x5x5) code, information/action, force & area,
	// weed date, PNC ID, GPMS marking, CAD information, operational
	// instructions, source reference.
	return []string{
		v.Plate,
		deref(v.Make),
		deref(v.Model),
		deref(v.Colour),
		deriveAction(v, groupPriority),
		deref(v.WarningMarkers),
		deref(v.Category),
		deref(v.NIMCode),
		deref(v.IntelligenceInfo),
		deref(v.ForceArea),
		weedDate,
		deref(v.PNCID),
		gpms,
		deref(v.CADInfo),
		deref(v.OperationalInstructions),
		deref(v.SourceReference),
	}
}

// RenderRecords renders the active vehicle set as delimited text, one
// row per vehicle, UTF-8.
func RenderRecords(vehicles []models.VehicleRecord, groupPriority models.Priority) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i := range vehicles {
		if err := w.Write(RenderRow(&vehicles[i], groupPriority)); err != nil {
			return nil, fmt.Errorf("render hotlist row for %s: %w", vehicles[i].Plate, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EntryName returns the archive entry filename for a delta shipment.
func EntryName(sourceID, hotlistName, operation string) string {
	return fmt.Sprintf("%s_%s_%s.dat", sourceID, hotlistName, operation)
}

// BuildDelta packages a group's active vehicles as a single-entry
// compressed archive. sizeLimit <= 0 means unlimited; when the packaged
// output exceeds a supplied limit the caller gets tooBig=true and no
// payload rather than an error.
func BuildDelta(sourceID string, group *models.HotlistGroup, vehicles []models.VehicleRecord, sizeLimit int) (payload []byte, tooBig bool, err error) {
	records, err := RenderRecords(vehicles, group.Priority)
	if err != nil {
		return nil, false, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	entry, err := zw.Create(EntryName(sourceID, group.Name, OpRefresh))
	if err != nil {
		return nil, false, fmt.Errorf("create delta entry: %w", err)
	}
	if _, err := entry.Write(records); err != nil {
		return nil, false, fmt.Errorf("write delta entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("close delta archive: %w", err)
	}

	if sizeLimit > 0 && buf.Len() > sizeLimit {
		return nil, true, nil
	}
	return buf.Bytes(), false, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
