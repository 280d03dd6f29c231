package main

import (
	"fmt"
	"log"
	"os"

	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/models"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

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

	fmt.Println("Start cleanup...")

	// Delete all capture records
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CaptureRecord{}).Error; err != nil {
		log.Fatalf("Failed to delete capture records: %v", err)
	}
	fmt.Println("✅ Deleted all capture records")

	// Delete all revision cursors
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.RevisionCursor{}).Error; err != nil {
		log.Fatalf("Failed to delete revision cursors: %v", err)
	}
	fmt.Println("✅ Deleted all revision cursors")

	// Delete all device sources
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DeviceSource{}).Error; err != nil {
		log.Fatalf("Failed to delete device sources: %v", err)
	}
	fmt.Println("✅ Deleted all device sources")

	// Optionally wipe hotlists as well
	if len(os.Args) > 1 && os.Args[1] == "--all" {
		if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.VehicleRecord{}).Error; err != nil {
			log.Fatalf("Failed to delete vehicle records: %v", err)
		}
		fmt.Println("✅ Deleted all vehicle records")

		if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.HotlistGroup{}).Error; err != nil {
			log.Fatalf("Failed to delete hotlist groups: %v", err)
		}
		fmt.Println("✅ Deleted all hotlist groups")
	}

	fmt.Println("🏁 Cleanup complete")
}
