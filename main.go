package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"forum-progression/config"
	"forum-progression/handlers"
	"forum-progression/middleware"
	"forum-progression/models"
	"forum-progression/services"
	"forum-progression/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	progression, err := config.Resolve(loadCtx, env)
	cancelLoad()
	if err != nil {
		log.Fatal("failed to load progression tables:", err)
	}
	log.Printf("✅ Progression tables %s loaded (timezone %s)", progression.Version, progression.Location())

	db, err := gorm.Open(postgres.Open(env.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	engine := services.NewEngine(db, progression)

	reconciler := workers.NewReconciler(engine.Reconcile, env.ReconcileInterval)
	if err := reconciler.Start(ctx); err != nil {
		log.Fatal("failed to start reconciler:", err)
	}

	app := fiber.New()

	// 🔐 Only gateway requests are accepted when a token is configured
	app.Use(middleware.GatewayAuthMiddleware(env.GatewayToken))

	allowedOrigins := strings.Join(env.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupProgressionRoutes(app, engine, time.Now)

	go func() {
		if err := app.Listen(":" + env.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", env.Port)
	log.Printf("✅ Reconciler running (every %s)", env.ReconcileInterval)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	reconciler.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
