package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/anprhub/backend/models"
)

// PushConfig configures the outbound push to an upstream BOF management
// server. Constructed once at startup and handed to NewPushClient; there
// is no ambient global configuration.
type PushConfig struct {
	Endpoint   string // e.g. http://bof-host/bof/services/AnprService
	Username   string
	Password   string
	FeedID     string
	SourceID   string
	CameraID   int
	Enabled    bool
	HTTPClient *http.Client
}

// PushClient ships finalized capture records upstream as SOAP calls.
// The sink is fire-and-forget: failures are logged, never propagated
// back to the ingest path.
type PushClient struct {
	cfg    PushConfig
	client *http.Client
}

// NewPushClient creates a push client from config.
func NewPushClient(cfg PushConfig) *PushClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.CameraID == 0 {
		cfg.CameraID = 1
	}
	return &PushClient{cfg: cfg, client: client}
}

// Enabled reports whether the upstream sink is configured.
func (p *PushClient) Enabled() bool {
	return p.cfg.Enabled
}

// SendCompactCapture pushes the textual part of a read upstream.
func (p *PushClient) SendCompactCapture(read *models.CaptureRecord) error {
	if !p.cfg.Enabled {
		return nil
	}

	compact := fmt.Sprintf("%s,%s,%s,%d,%s",
		read.Plate, read.Timestamp.Format(time.RFC3339), read.Location, read.Confidence, read.CameraID)

	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
               xmlns:bof="http://bof.homeoffice.gov.uk/anpr">
    <soap:Header/>
    <soap:Body>
        <bof:sendCompactCapture>
            <bof:username>%s</bof:username>
            <bof:password>%s</bof:password>
            <bof:feedIdentifier>%s</bof:feedIdentifier>
            <bof:sourceIdentifier>%s</bof:sourceIdentifier>
            <bof:cameraIdentifier>%d</bof:cameraIdentifier>
            <bof:compactCapture>%s</bof:compactCapture>
        </bof:sendCompactCapture>
    </soap:Body>
</soap:Envelope>`,
		p.cfg.Username, p.cfg.Password, p.cfg.FeedID, p.cfg.SourceID, p.cfg.CameraID, compact)

	return p.post("sendCompactCapture", body)
}

// AddBinaryCaptureData pushes image bytes for a read upstream.
// dataType is "plate" or "context".
func (p *PushClient) AddBinaryCaptureData(read *models.CaptureRecord, imageData []byte, dataType string) error {
	if !p.cfg.Enabled {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(imageData)
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
               xmlns:bof="http://bof.homeoffice.gov.uk/anpr">
    <soap:Header/>
    <soap:Body>
        <bof:addBinaryCaptureData>
            <bof:username>%s</bof:username>
            <bof:password>%s</bof:password>
            <bof:feedIdentifier>%s</bof:feedIdentifier>
            <bof:sourceIdentifier>%s</bof:sourceIdentifier>
            <bof:cameraIdentifier>%d</bof:cameraIdentifier>
            <bof:plateNumber>%s</bof:plateNumber>
            <bof:captureDateTime>%s</bof:captureDateTime>
            <bof:dataType>%s</bof:dataType>
            <bof:binaryData>%s</bof:binaryData>
        </bof:addBinaryCaptureData>
    </soap:Body>
</soap:Envelope>`,
		p.cfg.Username, p.cfg.Password, p.cfg.FeedID, p.cfg.SourceID, p.cfg.CameraID,
		read.Plate, read.Timestamp.Format(time.RFC3339), dataType, encoded)

	return p.post("addBinaryCaptureData", body)
}

// PushRead ships one finalized read and its images, logging failures.
// Intended to run in its own goroutine off the ingest path.
func (p *PushClient) PushRead(read *models.CaptureRecord, plateImage, contextImage []byte) {
	if !p.cfg.Enabled {
		return
	}
	if err := p.SendCompactCapture(read); err != nil {
		log.Printf("⚠️ BOF push: compact capture for %s failed: %v", read.Plate, err)
		return
	}
	if len(plateImage) > 0 {
		if err := p.AddBinaryCaptureData(read, plateImage, "plate"); err != nil {
			log.Printf("⚠️ BOF push: plate image for %s failed: %v", read.Plate, err)
		}
	}
	if len(contextImage) > 0 {
		if err := p.AddBinaryCaptureData(read, contextImage, "context"); err != nil {
			log.Printf("⚠️ BOF push: context image for %s failed: %v", read.Plate, err)
		}
	}
}

func (p *PushClient) post(action, body string) error {
	req, err := http.NewRequest(http.MethodPost, p.cfg.Endpoint, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", action, resp.StatusCode)
	}
	return nil
}
