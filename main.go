package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"piece-core-system/handlers"
	"piece-core-system/middleware"
	"piece-core-system/models"
	"piece-core-system/services"
	"piece-core-system/utils"
	"piece-core-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 5 * 1024 * 1024, // 5MB — JSON payloads only, no media
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Card{},
		&models.Piece{},
		&models.Unlock{},
		&models.MatchIntent{},
		&models.Match{},
		&models.ProfileUser{},
		&models.CoinPurchase{},
		&models.Report{},
		&models.Block{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	walletService := services.NewWalletService(db)
	promoValidator := services.NewHTTPPromoValidator()
	unlockService := services.NewUnlockService(db, walletService, promoValidator)
	matchService := services.NewMatchService(db)
	cardService := services.NewCardService(db)
	reportService := services.NewReportService(db)

	// --- CONFIGURE identity service details for profile mirroring ---
	identityServiceURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityServiceURL == "" {
		log.Fatal("IDENTITY_SERVICE_URL environment variable not set")
	}
	pieceServiceToken := os.Getenv("PIECE_SERVICE_TOKEN")
	if pieceServiceToken == "" {
		log.Fatal("PIECE_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	profileSyncWorker := workers.NewProfileSyncWorker(db, identityServiceURL, "/api/v1/public/profiles", pieceServiceToken)

	purchaseSyncClient := workers.NewPurchaseSyncClient(db, walletService)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollPurchases(ctx, purchaseSyncClient, 10*time.Second)

	go func() {
		log.Println("Starting Profile Sync Worker...")
		profileSyncWorker.Start(ctx)
	}()

	walletService.StartLedgerScheduler()

	// ✅ Setup routes — enforced Gateway auth + user context per group
	handlers.SetupWalletRoutes(app, walletService)
	handlers.SetupCardRoutes(app, cardService, unlockService)
	handlers.SetupMatchRoutes(app, matchService)
	handlers.SetupReportRoutes(app, reportService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ Purchase polling running (every 10s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
