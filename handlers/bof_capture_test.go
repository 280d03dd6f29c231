package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/anprhub/backend/models"
	"github.com/anprhub/backend/services"
	"github.com/gin-gonic/gin"
)

func captureRouter(t *testing.T) *gin.Engine {
	t.Helper()
	images, err := services.NewImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	h := NewCaptureHandler(images, nil, nil)

	router := gin.New()
	bof := router.Group("/bof/services")
	{
		bof.POST("/InputCaptureWebService/sendCapture", h.SendCapture)
		bof.POST("/InputCaptureWebService/sendCompactCapture", h.SendCompactCapture)
		bof.POST("/InputCaptureWebService/sendCompoundCapture", h.SendCompoundCapture)
		bof.POST("/InputBinaryDataWebService/addBinaryCaptureData", h.AddBinaryCaptureData)
	}
	return router
}

func TestSendCaptureMatchesHotlist(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)
	seedGroup(t, db, "stolen", 2, "AB12CDE")

	body := `{
		"vrm": "AB12CDE",
		"feedId": 1,
		"sourceId": 2,
		"cameraId": 3,
		"captureDate": "2024-06-01T09:15:00Z",
		"confidencePercentage": 87
	}`
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCapture", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ReadID == nil {
		t.Fatalf("resp = %+v", resp)
	}

	var read models.CaptureRecord
	if err := db.First(&read, *resp.ReadID).Error; err != nil {
		t.Fatalf("load read: %v", err)
	}
	if !read.HotlistMatch {
		t.Error("hotlisted plate not flagged as match")
	}
	if read.VehicleRecordID == nil {
		t.Error("matched read missing vehicle reference")
	}
	if read.Confidence != 87 {
		t.Errorf("confidence = %d, want 87", read.Confidence)
	}
	if read.CameraID != "3" {
		t.Errorf("camera = %q, want %q", read.CameraID, "3")
	}
}

func TestSendCaptureNoMatch(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)
	seedGroup(t, db, "stolen", 2, "AB12CDE")

	body := `{"vrm": "ZZ99YXW", "captureDate": "2024-06-01T09:15:00Z"}`
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCapture", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var read models.CaptureRecord
	if err := db.Where("plate = ?", "ZZ99YXW").First(&read).Error; err != nil {
		t.Fatalf("load read: %v", err)
	}
	if read.HotlistMatch {
		t.Error("unlisted plate flagged as match")
	}
}

func TestSendCaptureValidation(t *testing.T) {
	setupTest(t)
	router := captureRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing vrm", `{"captureDate": "2024-06-01T09:15:00Z"}`},
		{"bad date", `{"vrm": "AB12CDE", "captureDate": "yesterday"}`},
		{"confidence out of range", `{"vrm": "AB12CDE", "captureDate": "2024-06-01T09:15:00Z", "confidencePercentage": 150}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCapture", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestSendCompactCapture(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)
	seedGroup(t, db, "stolen", 2, "AB12CDE")

	body := `{"capture": "SIG|operator|AB12CDE|10|20|30|2024-01-01T12:00:00Z"}`
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCompactCapture", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var read models.CaptureRecord
	if err := db.Where("plate = ?", "AB12CDE").First(&read).Error; err != nil {
		t.Fatalf("load read: %v", err)
	}
	if read.CameraID != "30" {
		t.Errorf("camera = %q, want %q", read.CameraID, "30")
	}
	if !strings.Contains(read.Location, "Feed:10") {
		t.Errorf("location = %q", read.Location)
	}
	if !read.HotlistMatch {
		t.Error("hotlisted plate not flagged as match")
	}
}

func TestSendCompactCaptureMalformed(t *testing.T) {
	setupTest(t)
	router := captureRouter(t)

	body := `{"capture": "SIG|operator|AB12CDE|10|20|30"}`
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCompactCapture", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSendCompoundCapture(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)

	captures := make([]string, 0, 50)
	for i := 0; i < 48; i++ {
		captures = append(captures,
			fmt.Sprintf("SIG|operator|PL%03d|1|2|3|2024-01-01T12:00:00Z", i))
	}
	// Two malformed entries are skipped, not fatal.
	captures = append(captures, "not-a-capture", "SIG|operator||1|2|3|2024-01-01T12:00:00Z")

	payload, _ := json.Marshal(map[string][]string{"captures": captures})
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCompoundCapture", string(payload))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Created == nil || *resp.Created != 48 {
		t.Errorf("created = %v, want 48", resp.Created)
	}

	var count int64
	db.Model(&models.CaptureRecord{}).Count(&count)
	if count != 48 {
		t.Errorf("stored reads = %d, want 48", count)
	}
}

func TestSendCompoundCaptureBatchIsAtomic(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)

	// A unique index forces a storage failure partway through the batch.
	if err := db.Exec("CREATE UNIQUE INDEX idx_capture_plate_once ON capture_records(plate)").Error; err != nil {
		t.Fatalf("create index: %v", err)
	}

	captures := []string{
		"SIG|operator|PL001|1|2|3|2024-01-01T12:00:00Z",
		"SIG|operator|PL002|1|2|3|2024-01-01T12:00:01Z",
		"SIG|operator|PL001|1|2|3|2024-01-01T12:00:02Z",
	}
	payload, _ := json.Marshal(map[string][]string{"captures": captures})
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCompoundCapture", string(payload))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	// The failed batch rolls back as a unit; the entries stored before
	// the failure do not linger.
	var count int64
	db.Model(&models.CaptureRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("stored reads = %d, want 0", count)
	}
}

func TestSendCompoundCaptureRejectsOversizedBatch(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)

	captures := make([]string, 51)
	for i := range captures {
		captures[i] = fmt.Sprintf("SIG|operator|PL%03d|1|2|3|2024-01-01T12:00:00Z", i)
	}
	payload, _ := json.Marshal(map[string][]string{"captures": captures})
	w := doJSON(router, http.MethodPost, "/bof/services/InputCaptureWebService/sendCompoundCapture", string(payload))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	// Nothing from the rejected batch lands.
	var count int64
	db.Model(&models.CaptureRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("stored reads = %d, want 0", count)
	}
}

func TestAddBinaryCaptureDataAttachesToExistingRead(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)

	captureTime := time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC)
	read := &models.CaptureRecord{
		Plate:      "AB12CDE",
		CameraID:   "3",
		Timestamp:  captureTime,
		Confidence: 90,
	}
	if err := db.Create(read).Error; err != nil {
		t.Fatalf("create read: %v", err)
	}

	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	body := fmt.Sprintf(`{
		"vrm": "AB12CDE",
		"cameraIdentifier": 3,
		"captureTime": "2024-06-01T09:15:00Z",
		"binaryDataType": "P",
		"binaryImage": %q
	}`, image)
	w := doJSON(router, http.MethodPost, "/bof/services/InputBinaryDataWebService/addBinaryCaptureData", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var got models.CaptureRecord
	if err := db.First(&got, read.ID).Error; err != nil {
		t.Fatalf("load read: %v", err)
	}
	if got.PlateImagePath == nil || *got.PlateImagePath == "" {
		t.Error("plate image path not recorded")
	}
	if got.ContextImagePath != nil {
		t.Error("context image path set by a plate upload")
	}

	var count int64
	db.Model(&models.CaptureRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("read count = %d, want 1 (upsert, no duplicate)", count)
	}
}

func TestAddBinaryCaptureDataCreatesZeroConfidenceRead(t *testing.T) {
	db := setupTest(t)
	router := captureRouter(t)

	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	body := fmt.Sprintf(`{
		"vrm": "XY98ZWV",
		"cameraIdentifier": 4,
		"captureTime": "2024-06-01T10:00:00Z",
		"binaryDataType": "C",
		"binaryImage": %q
	}`, image)
	w := doJSON(router, http.MethodPost, "/bof/services/InputBinaryDataWebService/addBinaryCaptureData", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var read models.CaptureRecord
	if err := db.Where("plate = ?", "XY98ZWV").First(&read).Error; err != nil {
		t.Fatalf("load read: %v", err)
	}
	if read.Confidence != 0 {
		t.Errorf("confidence = %d, want 0 for image-first read", read.Confidence)
	}
	if read.ContextImagePath == nil || *read.ContextImagePath == "" {
		t.Error("context image path not recorded")
	}
}

func TestAddBinaryCaptureDataValidation(t *testing.T) {
	setupTest(t)
	router := captureRouter(t)

	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	cases := []struct {
		name string
		body string
	}{
		{"bad type", fmt.Sprintf(`{"vrm":"A","captureTime":"2024-06-01T10:00:00Z","binaryDataType":"X","binaryImage":%q}`, image)},
		{"bad base64", `{"vrm":"A","captureTime":"2024-06-01T10:00:00Z","binaryDataType":"P","binaryImage":"%%%"}`},
		{"bad time", fmt.Sprintf(`{"vrm":"A","captureTime":"now","binaryDataType":"P","binaryImage":%q}`, image)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/bof/services/InputBinaryDataWebService/addBinaryCaptureData", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}
