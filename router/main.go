package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/guitarprime/api/config"
	"github.com/guitarprime/api/database"
	"github.com/guitarprime/api/handlers"
	attachment_handlers "github.com/guitarprime/api/handlers/attachment"
	auth_handlers "github.com/guitarprime/api/handlers/auth"
	course_handlers "github.com/guitarprime/api/handlers/course"
	module_handlers "github.com/guitarprime/api/handlers/module"
	purchase_handlers "github.com/guitarprime/api/handlers/purchase"
	theme_handlers "github.com/guitarprime/api/handlers/theme"
	webhook_handlers "github.com/guitarprime/api/handlers/webhook"
	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/services"
	"github.com/guitarprime/api/services/payment"
	"github.com/guitarprime/api/services/queue"
	"github.com/guitarprime/api/services/storage"
	"github.com/guitarprime/api/services/webhook"
	"github.com/guitarprime/api/utils/auth"
	"github.com/guitarprime/api/utils/cache"
	"github.com/guitarprime/api/utils/middleware"
)

// SetupRoutes wires services, handlers and middleware onto the Fiber app.
// It returns the webhook queue worker (nil when Redis is unavailable) so the
// caller can run it alongside the HTTP server, and the purchase service so
// the cron jobs reconcile through the same provider clients.
func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) (*webhook.Worker, *services.PurchaseService) {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "guitarprime-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs both brute force protection and the webhook queue
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection and webhook processing will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Attachment storage: S3-compatible bucket in production, local disk
	// otherwise
	var disk storage.Disk
	if env.STORAGE_DISK == "spaces" {
		disk, err = storage.NewSpacesDisk(storage.SpacesConfig{
			AccessKey: env.SPACES_ACCESS_KEY,
			SecretKey: env.SPACES_SECRET_KEY,
			Bucket:    env.SPACES_BUCKET,
			Region:    env.SPACES_REGION,
			Endpoint:  env.SPACES_ENDPOINT,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Spaces storage: %v", err)
		}
	} else {
		root := os.Getenv("STORAGE_PATH")
		if root == "" {
			root = "./storage"
		}
		disk, err = storage.NewLocalDisk(root)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
	}

	// Payment providers
	stripe := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     env.STRIPE_SECRET_KEY,
		WebhookSecret: env.STRIPE_WEBHOOK_SECRET,
		FrontendURL:   env.FRONTEND_URL,
	})
	razorpay := payment.NewRazorpayProvider(payment.RazorpayConfig{
		KeyID:         env.RAZORPAY_KEY_ID,
		KeySecret:     env.RAZORPAY_KEY_SECRET,
		WebhookSecret: env.RAZORPAY_WEBHOOK_SECRET,
		Name:          "GuitarPrime",
	})

	// Services
	accessService := services.NewAccessService(db)
	themeService := services.NewThemeService(db)
	courseService := services.NewCourseService(db)
	moduleService := services.NewModuleService(db, disk)
	attachmentService := services.NewAttachmentService(db, disk)
	purchaseService := services.NewPurchaseService(db, env.PAYMENT_DEFAULT_CURRENCY, stripe, razorpay)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	themeHandler := theme_handlers.NewThemeHandler(themeService)
	courseHandler := course_handlers.NewCourseHandler(courseService, accessService)
	moduleHandler := module_handlers.NewModuleHandler(moduleService, accessService)
	attachmentHandler := attachment_handlers.NewAttachmentHandler(attachmentService, accessService)
	purchaseHandler := purchase_handlers.NewPurchaseHandler(purchaseService)
	healthHandler := handlers.NewHealthHandler(store)

	// Webhook endpoints are registered before the security middleware so
	// provider retries never hit the rate limiter. Without Redis there is no
	// queue, so the endpoints are not registered at all and providers keep
	// retrying until Redis is back.
	var worker *webhook.Worker
	if redisCache != nil {
		webhookQueue := queue.NewWebhookQueue(redisCache.GetClient())
		webhookHandler := webhook_handlers.NewWebhookHandler(stripe, razorpay, webhookQueue)
		app.Post("/webhooks/stripe", webhookHandler.Stripe)
		app.Post("/webhooks/razorpay", webhookHandler.Razorpay)

		worker = webhook.NewWorker(webhookQueue, webhook.NewProcessor(purchaseService))
	}

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/logout-everywhere", authMiddleware.Required(), authHandler.LogoutEverywhere)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.Profile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Themes. Browsing is public (guests see approved content only), all
	// mutations are admin-only.
	themes := api.Group("/themes")
	themes.Get("/", authMiddleware.Optional(), themeHandler.List)
	themes.Get("/:id", authMiddleware.Optional(), themeHandler.Get)
	themes.Post("/", authMiddleware.RequireRole(model.RoleAdmin), themeHandler.Create)
	themes.Put("/:id", authMiddleware.RequireRole(model.RoleAdmin), themeHandler.Update)
	themes.Delete("/:id", authMiddleware.RequireRole(model.RoleAdmin), themeHandler.Delete)

	// Courses. Coaches manage their own, admins manage everything, approval
	// is admin-only.
	courses := api.Group("/courses")
	courses.Get("/", authMiddleware.Optional(), courseHandler.List)
	courses.Get("/:id", authMiddleware.Optional(), courseHandler.Get)
	courses.Get("/:id/modules", authMiddleware.Optional(), courseHandler.Modules)
	courses.Post("/", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), courseHandler.Create)
	courses.Put("/:id", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), courseHandler.Update)
	courses.Delete("/:id", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), courseHandler.Delete)
	courses.Post("/:id/approve", authMiddleware.RequireRole(model.RoleAdmin), courseHandler.Approve)
	courses.Put("/:id/modules", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), courseHandler.SyncModules)

	// Modules. Get hides paid material behind the entitlement check, so it is
	// safe for guests.
	modules := api.Group("/modules")
	modules.Get("/", authMiddleware.Optional(), moduleHandler.List)
	modules.Get("/:id", authMiddleware.Optional(), moduleHandler.Get)
	modules.Post("/", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), moduleHandler.Create)
	modules.Put("/:id", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), moduleHandler.Update)
	modules.Delete("/:id", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), moduleHandler.Delete)

	// Attachments. Upload is nested under the owning module; download checks
	// entitlement before any bytes leave storage.
	modules.Post("/:id/attachments", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), attachmentHandler.Upload)
	attachments := api.Group("/attachments")
	attachments.Put("/:id", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), attachmentHandler.Rename)
	attachments.Delete("/:id", authMiddleware.RequireRole(model.RoleAdmin, model.RoleCoach), attachmentHandler.Delete)
	attachments.Get("/:id/download", authMiddleware.Optional(), attachmentHandler.Download)

	// Purchases (all protected)
	purchases := api.Group("/purchases", authMiddleware.Required())
	purchases.Get("/", purchaseHandler.List)
	purchases.Get("/:id", purchaseHandler.Get)
	purchases.Post("/", purchaseHandler.Create)
	purchases.Get("/:id/success", purchaseHandler.Success)
	purchases.Post("/:id/verify", purchaseHandler.Verify)
	purchases.Post("/:id/cancel", purchaseHandler.Cancel)

	return worker, purchaseService
}
