package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"qrvend-backend/config"
	"qrvend-backend/engine"
	"qrvend-backend/handlers"
	"qrvend-backend/logger"
	"qrvend-backend/middleware"
	"qrvend-backend/registry"
	"qrvend-backend/storage"
)

func connectToDatabase(cfg *config.Config, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Connected to database")
	return pool, nil
}

func runMigrations(db *pgxpool.Pool, log *zap.Logger) error {
	migrationsDir := "migrations"
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(context.Background(), string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		log.Info("Migration applied", zap.String("file", filename))
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting QR vending backend",
		zap.String("min_value", cfg.QR.MinValue.String()),
		zap.Int("id_length", cfg.QR.IDLength))

	pool, err := connectToDatabase(cfg, log)
	if err != nil {
		log.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := runMigrations(pool, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	store := storage.NewPostgres(pool, log)
	reg := registry.New(store, log, cfg.QR.IDLength)
	eng := engine.New(store, log, cfg.QR.MinValue)

	qrcodeHandler := handlers.NewQRCodeHandler(reg, eng, log)
	authHandler := handlers.NewAuthHandler(pool, cfg, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(log))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORS.Origins) == 1 && cfg.CORS.Origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORS.Origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	secret := cfg.Auth.JWTSecret

	api := router.Group("/api")
	{
		api.POST("/token", authHandler.Login)

		// Public: readers only need possession of the code.
		api.GET("/qrdata/:qrcode_id", qrcodeHandler.GetQRCode)
		api.PUT("/qrdata/exchange/:qrcode_id", qrcodeHandler.ExchangeQRCode)

		api.GET("/qrcodes", middleware.RequireAuth(secret), qrcodeHandler.ListQRCodes)

		api.POST("/qrdata", middleware.RequireAdmin(secret), qrcodeHandler.CreateQRCode)
		api.PUT("/qrdata/:qrcode_id", middleware.RequireAdmin(secret), qrcodeHandler.UpdateQRCode)
	}

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(200, gin.H{"status": "healthy"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Server starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
