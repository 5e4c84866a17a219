package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/api/handlers"
	job "github.com/postpilot/postpilot/internal/jobs"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	var db *sql.DB
	var store repository.ScheduleStore
	var assetService service.AssetService

	if cfg.PostgresURI != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer closeDB(db)

		if err := db.Ping(); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}

		store = repository.NewPostgresStore(db)
		if cfg.R2.AccountID != "" {
			assetService = service.NewAssetService(*cfg, repository.NewMediaAssetRepository(db))
		}
	} else {
		log.Println("POSTGRES_URI not set, using in-memory schedule store")
		store = repository.NewMemoryStore()
	}

	poster, err := service.NewXService(*cfg)
	if err != nil {
		log.Fatalf("Failed to initialize X API client: %v", err)
	}

	publisher := service.NewPublisherService(*cfg, store, poster)
	ingestService := service.NewIngestService(store)
	statusService := service.NewStatusService(store)

	var dispatcher queue.Dispatcher
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client := asynq.NewClient(redisConn)
		defer client.Close()
		dispatcher = queue.NewAsynqDispatcher(client)

		worker := queue.NewWorker(publisher)
		go func() {
			server := asynq.NewServer(redisConn, asynq.Config{
				Concurrency: cfg.PublishConcurrency,
			})

			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypePublishPost, worker.HandlePublishPostTask)

			log.Println("Starting the Asynq server...")
			if err := server.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	} else {
		log.Println("REDIS_URI not set, publishing in-process")
		dispatcher = queue.NewInlineDispatcher(publisher, cfg.PublishConcurrency)
	}

	pollJob := job.NewPublishPollJob(store, dispatcher)
	scheduler := job.NewScheduler(cfg.PollInterval, pollJob)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	api := app.Group("/api")

	upload := handlers.NewUploadHandler(ingestService)
	api.Post("/uploads/csv", upload.UploadCSV)

	post := handlers.NewPostHandler(statusService)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Post("/posts/:id/cancel", post.CancelPost)
	api.Get("/threads/:id", post.GetThread)
	api.Post("/threads/:id/cancel", post.CancelThread)
	api.Get("/stats", post.GetStats)

	asset := handlers.NewAssetHandler(assetService)
	api.Post("/assets", asset.UploadAsset)
	api.Get("/assets", asset.ListAssets)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, scheduler, dispatcher)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, scheduler *job.Scheduler, dispatcher queue.Dispatcher) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()

	if inline, ok := dispatcher.(*queue.InlineDispatcher); ok {
		inline.Drain()
	}

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
