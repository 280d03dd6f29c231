package services

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anprhub/backend/models"
)

func testRead() *models.CaptureRecord {
	return &models.CaptureRecord{
		Plate:      "AB12CDE",
		CameraID:   "3",
		Location:   "Feed:1, Source:2, Camera:3",
		Timestamp:  time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC),
		Confidence: 87,
	}
}

func TestPushClientSendCompactCapture(t *testing.T) {
	t.Parallel()

	var gotAction, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewPushClient(PushConfig{
		Endpoint: server.URL,
		Username: "ops",
		Password: "secret",
		FeedID:   "1",
		SourceID: "2",
		CameraID: 3,
		Enabled:  true,
	})

	if err := client.SendCompactCapture(testRead()); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAction != "sendCompactCapture" {
		t.Errorf("SOAPAction = %q", gotAction)
	}
	for _, want := range []string{
		"<bof:username>ops</bof:username>",
		"<bof:cameraIdentifier>3</bof:cameraIdentifier>",
		"AB12CDE",
		"2024-06-01T09:15:00Z",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("envelope missing %q:\n%s", want, gotBody)
		}
	}
}

func TestPushClientAddBinaryCaptureData(t *testing.T) {
	t.Parallel()

	var gotAction, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewPushClient(PushConfig{Endpoint: server.URL, Enabled: true})

	if err := client.AddBinaryCaptureData(testRead(), []byte("jpeg"), "plate"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAction != "addBinaryCaptureData" {
		t.Errorf("SOAPAction = %q", gotAction)
	}
	if !strings.Contains(gotBody, "<bof:dataType>plate</bof:dataType>") {
		t.Errorf("envelope missing data type:\n%s", gotBody)
	}
	// "jpeg" base64-encoded.
	if !strings.Contains(gotBody, "anBlZw==") {
		t.Errorf("envelope missing encoded image:\n%s", gotBody)
	}
}

func TestPushClientDisabledIsNoop(t *testing.T) {
	t.Parallel()

	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewPushClient(PushConfig{Endpoint: server.URL, Enabled: false})
	if err := client.SendCompactCapture(testRead()); err != nil {
		t.Fatalf("send: %v", err)
	}
	client.PushRead(testRead(), []byte("x"), nil)
	if called {
		t.Error("disabled client still called the endpoint")
	}
}

func TestPushClientNon200IsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewPushClient(PushConfig{Endpoint: server.URL, Enabled: true})
	if err := client.SendCompactCapture(testRead()); err == nil {
		t.Error("502 response not reported as error")
	}
}
