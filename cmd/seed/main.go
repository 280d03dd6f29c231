package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/joho/godotenv"
)

var samplePlates = []string{
	"AB12CDE", "XY98ZWV", "LM34NOP", "GH56JKL", "QR78STU",
	"BD51SMR", "KT09UVW", "NH65XYL", "PO22ABF", "WE40GHK",
	"FJ11MNC", "RV73PQD", "YU84TRE", "CX26LOB", "ZA17VUN",
}

var sampleCategories = []string{
	"Stolen Vehicle", "Cloned Plates", "No Insurance", "Wanted Person", "Intelligence",
}

var samplePriorities = []models.Priority{
	models.PriorityLow,
	models.PriorityMedium,
	models.PriorityMedium,
	models.PriorityHigh,
	models.PriorityCritical,
}

func strptr(s string) *string { return &s }

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("🌱 Starting hotlist seed...")

	groups := []models.HotlistGroup{
		{Name: "stolen_vehicles", Priority: models.PriorityCritical, IsActive: true, Revision: 1},
		{Name: "uninsured", Priority: models.PriorityMedium, IsActive: true, Revision: 1},
		{Name: "local_intel", Priority: models.PriorityLow, IsActive: true, Revision: 1},
	}
	for i := range groups {
		if err := database.DB.Where("name = ?", groups[i].Name).FirstOrCreate(&groups[i]).Error; err != nil {
			log.Fatalf("Failed to create hotlist group %s: %v", groups[i].Name, err)
		}
		fmt.Printf("✅ Hotlist group %s (id=%d)\n", groups[i].Name, groups[i].ID)
	}

	// Spread sample vehicles across the groups
	created := 0
	for i, plate := range samplePlates {
		group := groups[i%len(groups)]
		vehicle := models.VehicleRecord{
			HotlistGroupID: group.ID,
			Plate:          plate,
			Make:           strptr("Ford"),
			Model:          strptr("Focus"),
			Colour:         strptr("Blue"),
			Category:       strptr(sampleCategories[i%len(sampleCategories)]),
			Priority:       samplePriorities[i%len(samplePriorities)],
			IsActive:       true,
			Revision:       1,
		}
		if err := database.DB.Where("plate = ? AND hotlist_group_id = ?", plate, group.ID).
			FirstOrCreate(&vehicle).Error; err != nil {
			log.Fatalf("Failed to create vehicle %s: %v", plate, err)
		}
		created++
	}
	fmt.Printf("✅ Seeded %d hotlist vehicles\n", created)

	// A handful of historical captures, some matching the hotlists
	rand.Seed(time.Now().UnixNano())
	captureCount := 40
	for i := 0; i < captureCount; i++ {
		plate := samplePlates[rand.Intn(len(samplePlates))]
		if rand.Intn(3) == 0 {
			plate = fmt.Sprintf("ZZ%02dABC", rand.Intn(100))
		}
		confidence := 60 + rand.Intn(41)
		capture := models.CaptureRecord{
			Plate:      plate,
			CameraID:   fmt.Sprintf("%d", 1+rand.Intn(4)),
			Location:   "Feed:1, Source:1, Camera:1",
			Timestamp:  time.Now().Add(-time.Duration(rand.Intn(72)) * time.Hour),
			Confidence: confidence,
		}
		if err := database.DB.Create(&capture).Error; err != nil {
			log.Fatalf("Failed to create capture: %v", err)
		}
	}
	fmt.Printf("✅ Seeded %d capture records\n", captureCount)

	fmt.Println("🏁 Seed complete")
}
