package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/anprhub/backend/database"
	"github.com/anprhub/backend/handlers"
	"github.com/anprhub/backend/natsserver"
	"github.com/anprhub/backend/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close()

	// Start embedded NATS server for alert fan-out
	natsPort := 4233
	if portStr := os.Getenv("NATS_PORT"); portStr != "" {
		if parsed, err := strconv.Atoi(portStr); err == nil {
			natsPort = parsed
		}
	}
	natsServer, err := natsserver.New(natsserver.Config{
		Port:       natsPort,
		MaxPayload: 1024 * 1024,
	})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer natsServer.Shutdown()
	log.Printf("📡 Internal NATS server started on port %d", natsPort)

	natsConn, err := nats.Connect(fmt.Sprintf("nats://localhost:%d", natsPort))
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	// Initialize alert hub for WebSocket match streaming
	alertHub, err := services.NewAlertHub(natsConn)
	if err != nil {
		log.Fatalf("❌ Failed to start alert hub: %v", err)
	}
	go alertHub.Run()
	log.Println("🚨 Alert hub initialized")

	// Image storage for plate/context blobs
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "static/uploads"
	}
	imageStore, err := services.NewImageStore(uploadDir)
	if err != nil {
		log.Fatalf("❌ Failed to initialize image store: %v", err)
	}
	log.Printf("📁 Storing capture images in: %s", uploadDir)

	// Optional upstream SOAP sink
	pushCameraID := 1
	if idStr := os.Getenv("BOF_PUSH_CAMERA_ID"); idStr != "" {
		if parsed, err := strconv.Atoi(idStr); err == nil {
			pushCameraID = parsed
		}
	}
	pushClient := services.NewPushClient(services.PushConfig{
		Endpoint: os.Getenv("BOF_PUSH_ENDPOINT"),
		Username: os.Getenv("BOF_PUSH_USERNAME"),
		Password: os.Getenv("BOF_PUSH_PASSWORD"),
		FeedID:   os.Getenv("BOF_PUSH_FEED_ID"),
		SourceID: os.Getenv("BOF_PUSH_SOURCE_ID"),
		CameraID: pushCameraID,
		Enabled:  os.Getenv("BOF_PUSH_ENDPOINT") != "",
	})
	if pushClient.Enabled() {
		log.Printf("📤 Upstream capture push enabled: %s", os.Getenv("BOF_PUSH_ENDPOINT"))
	}

	captureHandler := handlers.NewCaptureHandler(imageStore, alertHub, pushClient)
	alertHandler := handlers.NewAlertHandler(alertHub)

	// Setup Gin router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(config))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Serve stored capture images
	router.Static("/uploads", uploadDir)

	// WebSocket route for live match alerts (outside /api group)
	router.GET("/ws/alerts", alertHandler.ServeWS)

	// Device-facing sync and capture endpoints
	bof := router.Group("/bof/services")
	{
		hotlists := bof.Group("/UpdateHotlistsService")
		{
			hotlists.GET("/getHotlistRepoStatus", handlers.GetHotlistRepoStatus)
			hotlists.GET("/getHotlistStatus", handlers.GetHotlistStatus)
			hotlists.POST("/setHotlistStatus", handlers.SetHotlistStatus)
			hotlists.GET("/getHotlistUpdates", handlers.GetHotlistUpdates)
			hotlists.GET("/getHotlistUpdatesRestrictSize", handlers.GetHotlistUpdatesRestrictSize)
			hotlists.GET("/getMultipleHotlistUpdates", handlers.GetMultipleHotlistUpdates)
			hotlists.GET("/getMultipleHotlistUpdatesRestrictSize", handlers.GetMultipleHotlistUpdatesRestrictSize)
		}

		captures := bof.Group("/InputCaptureWebService")
		{
			captures.POST("/sendCapture", captureHandler.SendCapture)
			captures.POST("/sendCompactCapture", captureHandler.SendCompactCapture)
			captures.POST("/sendCompoundCapture", captureHandler.SendCompoundCapture)
		}

		bof.POST("/InputBinaryDataWebService/addBinaryCaptureData", captureHandler.AddBinaryCaptureData)
	}

	// API Routes
	api := router.Group("/api")
	{
		// Alert hub stats
		api.GET("/alerts/stats", alertHandler.GetAlertStats)

		// Hotlist group routes
		groups := api.Group("/hotlist-groups")
		{
			groups.POST("", handlers.PostHotlistGroup)
			groups.GET("", handlers.GetHotlistGroups)
			groups.GET("/:id", handlers.GetHotlistGroup)
			groups.PUT("/:id", handlers.PutHotlistGroup)
			groups.DELETE("/:id", handlers.DeleteHotlistGroup)
			groups.POST("/:id/vehicles", handlers.PostGroupVehicle)
			groups.POST("/:id/upload-csv", handlers.UploadHotlistCSV)
		}

		// Vehicle routes
		vehicles := api.Group("/vehicles")
		{
			vehicles.PATCH("/:id", handlers.PatchVehicle)
			vehicles.DELETE("/:id", handlers.DeleteVehicle)
		}

		// Capture read routes
		reads := api.Group("/reads")
		{
			reads.GET("", handlers.GetReads)
			reads.GET("/:id", handlers.GetRead)
		}

		// Device routes
		devices := api.Group("/devices")
		{
			devices.GET("", handlers.GetDevices)
			devices.GET("/:sourceId", handlers.GetDevice)
		}

		// Dashboard stats
		api.GET("/stats", handlers.GetStats)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	log.Printf("🚀 Server running on http://localhost:%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
