package bof

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/anprhub/backend/models"
)

func strptr(s string) *string { return &s }

func TestRenderRowActionDerivation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		vehicle models.Priority
		group   models.Priority
		want    string
	}{
		{"critical record", models.PriorityCritical, models.PriorityLow, ActionStop},
		{"high record", models.PriorityHigh, models.PriorityLow, ActionStop},
		{"low record ignores urgent group", models.PriorityLow, models.PriorityCritical, ActionSilent},
		{"empty record falls back to group", "", models.PriorityHigh, ActionStop},
		{"empty record, calm group", "", models.PriorityMedium, ActionSilent},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := &models.VehicleRecord{Plate: "AB12CDE", Priority: tc.vehicle}
			row := RenderRow(v, tc.group)
			if len(row) != DeltaColumns {
				t.Fatalf("row has %d columns, want %d", len(row), DeltaColumns)
			}
			if row[4] != tc.want {
				t.Errorf("action column = %q, want %q", row[4], tc.want)
			}
		})
	}
}

func TestRenderRowFields(t *testing.T) {
	t.Parallel()

	weed := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	v := &models.VehicleRecord{
		Plate:            "AB12CDE",
		Make:             strptr("Ford"),
		Model:            strptr("Focus"),
		Colour:           strptr("Blue"),
		Category:         strptr("Stolen Vehicle"),
		Priority:         models.PriorityHigh,
		WarningMarkers:   strptr("WEAPONS"),
		NIMCode:          strptr("B2"),
		IntelligenceInfo: strptr("Seen near docks"),
		ForceArea:        strptr("MET/CO"),
		WeedDate:         &weed,
		PNCID:            strptr("24/123456A"),
	}
	row := RenderRow(v, models.PriorityLow)

	if row[0] != "AB12CDE" {
		t.Errorf("VRM = %q", row[0])
	}
	if row[1] != "Ford" || row[2] != "Focus" || row[3] != "Blue" {
		t.Errorf("vehicle description = %q/%q/%q", row[1], row[2], row[3])
	}
	if row[6] != "Stolen Vehicle" {
		t.Errorf("reason = %q", row[6])
	}
	if row[10] != "14/03/2025" {
		t.Errorf("weed date = %q, want 14/03/2025", row[10])
	}
	if row[12] != "Unclassified" {
		t.Errorf("GPMS default = %q, want Unclassified", row[12])
	}
}

func TestBuildDeltaRoundTrip(t *testing.T) {
	t.Parallel()

	group := &models.HotlistGroup{ID: 1, Name: "stolen", Priority: models.PriorityHigh}
	vehicles := []models.VehicleRecord{
		{Plate: "AB12CDE", Priority: models.PriorityCritical},
		{Plate: "XY98ZWV"},
		{Plate: "LM34NOP", Priority: models.PriorityLow},
	}

	payload, tooBig, err := BuildDelta("77", group, vehicles, 0)
	if err != nil {
		t.Fatalf("build delta: %v", err)
	}
	if tooBig {
		t.Fatal("unlimited build reported tooBig")
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) != 1 {
		t.Fatalf("archive has %d entries, want 1", len(reader.File))
	}
	if got, want := reader.File[0].Name, "77_stolen_R.dat"; got != want {
		t.Errorf("entry name = %q, want %q", got, want)
	}

	entry, err := reader.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer entry.Close()

	rows, err := csv.NewReader(entry).ReadAll()
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != len(vehicles) {
		t.Fatalf("archive carries %d rows, want %d", len(rows), len(vehicles))
	}
	for i, row := range rows {
		if len(row) != DeltaColumns {
			t.Errorf("row %d has %d columns, want %d", i, len(row), DeltaColumns)
		}
	}
	if rows[0][0] != "AB12CDE" || rows[1][0] != "XY98ZWV" || rows[2][0] != "LM34NOP" {
		t.Errorf("row order changed: %q %q %q", rows[0][0], rows[1][0], rows[2][0])
	}
	// Record without its own priority inherits the urgent group priority.
	if rows[1][4] != ActionStop {
		t.Errorf("inherited action = %q, want %q", rows[1][4], ActionStop)
	}
}

func TestBuildDeltaEmptyGroup(t *testing.T) {
	t.Parallel()

	group := &models.HotlistGroup{ID: 2, Name: "empty", Priority: models.PriorityLow}
	payload, tooBig, err := BuildDelta("5", group, nil, 0)
	if err != nil {
		t.Fatalf("build delta: %v", err)
	}
	if tooBig {
		t.Fatal("empty build reported tooBig")
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) != 1 {
		t.Fatalf("archive has %d entries, want 1", len(reader.File))
	}
}

func TestBuildDeltaSizeLimit(t *testing.T) {
	t.Parallel()

	group := &models.HotlistGroup{ID: 3, Name: "big", Priority: models.PriorityMedium}
	info := strings.Repeat("incompressible-", 50)
	vehicles := make([]models.VehicleRecord, 200)
	for i := range vehicles {
		plate := "PL" + strings.Repeat("X", i%10)
		vehicles[i] = models.VehicleRecord{Plate: plate, IntelligenceInfo: strptr(info + plate)}
	}

	payload, tooBig, err := BuildDelta("9", group, vehicles, 64)
	if err != nil {
		t.Fatalf("build delta: %v", err)
	}
	if !tooBig {
		t.Error("64-byte limit not reported as tooBig")
	}
	if payload != nil {
		t.Errorf("oversized build returned %d payload bytes, want none", len(payload))
	}
}

func TestEntryName(t *testing.T) {
	t.Parallel()

	if got, want := EntryName("12", "stolen", OpRefresh), "12_stolen_R.dat"; got != want {
		t.Errorf("EntryName = %q, want %q", got, want)
	}
}
