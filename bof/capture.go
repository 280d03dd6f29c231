package bof

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxCompoundCaptures is the batch ceiling for sendCompoundCapture.
const MaxCompoundCaptures = 50

// Compact capture field positions. The layout is strictly positional:
// the first seven fields are mandatory, everything after is optional
// and may be absent entirely or left empty.
const (
	posSignature = iota
	posUsername
	posVRM
	posFeedID
	posSourceID
	posCameraID
	posCaptureDate
	posLatitude
	posLongitude
	posCameraPreset
	posCameraPan
	posCameraTilt
	posCameraZoom
	posConfidence
	posMotionToward

	compactRequiredFields = posCaptureDate + 1
)

// CompactCapture is one parsed pipe-delimited read event.
type CompactCapture struct {
	Signature   string
	Username    string
	VRM         string
	FeedID      int
	SourceID    int
	CameraID    int
	CaptureDate time.Time

	Latitude           *float64
	Longitude          *float64
	CameraPreset       *int
	CameraPan          string
	CameraTilt         string
	CameraZoom         string
	Confidence         int
	MotionTowardCamera *bool
}

// Location renders the capture origin the way reads are stored.
func (c *CompactCapture) Location() string {
	return fmt.Sprintf("Feed:%d, Source:%d, Camera:%d", c.FeedID, c.SourceID, c.CameraID)
}

// ParseCompactCapture parses a pipe-delimited capture string. A string
// with fewer than seven fields, or with a malformed mandatory field, is
// rejected outright - there are no partial records.
func ParseCompactCapture(s string) (*CompactCapture, error) {
	parts := strings.Split(s, "|")
	if len(parts) < compactRequiredFields {
		return nil, fmt.Errorf("compact capture needs %d fields, got %d", compactRequiredFields, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	capture := &CompactCapture{
		Signature: parts[posSignature],
		Username:  parts[posUsername],
		VRM:       parts[posVRM],
	}
	if capture.VRM == "" {
		return nil, fmt.Errorf("compact capture has empty VRM")
	}

	var err error
	if capture.FeedID, err = strconv.Atoi(parts[posFeedID]); err != nil {
		return nil, fmt.Errorf("invalid feed identifier %q: %w", parts[posFeedID], err)
	}
	if capture.SourceID, err = strconv.Atoi(parts[posSourceID]); err != nil {
		return nil, fmt.Errorf("invalid source identifier %q: %w", parts[posSourceID], err)
	}
	if capture.CameraID, err = strconv.Atoi(parts[posCameraID]); err != nil {
		return nil, fmt.Errorf("invalid camera identifier %q: %w", parts[posCameraID], err)
	}
	if capture.CaptureDate, err = time.Parse(time.RFC3339, parts[posCaptureDate]); err != nil {
		return nil, fmt.Errorf("invalid capture date %q: %w", parts[posCaptureDate], err)
	}

	if v, ok := optional(parts, posLatitude); ok {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", v, err)
		}
		capture.Latitude = &lat
	}
	if v, ok := optional(parts, posLongitude); ok {
		lng, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", v, err)
		}
		capture.Longitude = &lng
	}
	if v, ok := optional(parts, posCameraPreset); ok {
		preset, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid camera preset %q: %w", v, err)
		}
		capture.CameraPreset = &preset
	}
	if v, ok := optional(parts, posCameraPan); ok {
		capture.CameraPan = v
	}
	if v, ok := optional(parts, posCameraTilt); ok {
		capture.CameraTilt = v
	}
	if v, ok := optional(parts, posCameraZoom); ok {
		capture.CameraZoom = v
	}
	if v, ok := optional(parts, posConfidence); ok {
		confidence, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence %q: %w", v, err)
		}
		if confidence < 0 || confidence > 100 {
			return nil, fmt.Errorf("confidence %d out of range 0-100", confidence)
		}
		capture.Confidence = confidence
	}
	if v, ok := optional(parts, posMotionToward); ok {
		toward := strings.EqualFold(v, "true")
		capture.MotionTowardCamera = &toward
	}

	return capture, nil
}

// optional returns the trimmed field at pos when it is present and
// non-empty. Absent trailing fields are tolerated.
func optional(parts []string, pos int) (string, bool) {
	if pos >= len(parts) || parts[pos] == "" {
		return "", false
	}
	return parts[pos], true
}
