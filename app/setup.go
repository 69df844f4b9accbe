package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/guitarprime/api/api"
	"github.com/guitarprime/api/config"
	"github.com/guitarprime/api/database"
	"github.com/guitarprime/api/router"
	"github.com/guitarprime/api/services/cron"
	"github.com/guitarprime/api/utils/auth"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Setup Routes
	worker, purchaseService := router.SetupRoutes(app, store, getEnv)

	// Start the webhook queue worker
	if worker != nil {
		worker.Start(context.Background())
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		db, ok := store.GetDB().(*gorm.DB)
		if !ok {
			print("Warning: Failed to get database connection for cron jobs\n")
		} else {
			cronManager = cron.NewCronManager(db, purchaseService, auth.NewBlacklistService(db))
			if err := cronManager.Start(); err != nil {
				print("Warning: Failed to start cron jobs\n")
				print("Error: ", err.Error(), "\n")
				// Don't fail the app, just log the warning
			}
		}
	}

	// Defer stopping background work and closing the DB
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if worker != nil {
			worker.Stop()
		}
		store.Close()
	}()

	// Get the PORT & Start the Server
	return server.Run()
}
