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
	"github.com/robfig/cron"
	config "github.com/storypilot/scheduler/configs"
	"github.com/storypilot/scheduler/internal/api/handlers"
	"github.com/storypilot/scheduler/internal/api/middleware"
	job "github.com/storypilot/scheduler/internal/jobs"
	"github.com/storypilot/scheduler/internal/publish"
	"github.com/storypilot/scheduler/internal/queue"
	"github.com/storypilot/scheduler/internal/repository"
	"github.com/storypilot/scheduler/internal/service"
)

const seriesLookbackDays = 90

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

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

	postRepo := repository.NewScheduledPostRepository(db)
	logRepo := repository.NewPublishLogRepository(db)
	accountRepo := repository.NewSnapAccountRepository(db)
	userRepo := repository.NewUserRepository(db)

	r2Service := service.NewR2Service(*cfg)
	mediaService := service.NewMediaService(*r2Service)
	accountService := service.NewAccountService(*cfg, accountRepo)
	postService := service.NewPostService(db, postRepo, accountRepo, logRepo, cfg.Dispatch.LookAhead)
	userService := service.NewUserService(userRepo)

	publisher := publish.NewSnapPublisher()
	retrier := publish.NewRetrier(
		cfg.Dispatch.MaxAttempts,
		time.Duration(cfg.Dispatch.BaseDelaySeconds)*time.Second,
		time.Duration(cfg.Dispatch.MaxDelaySeconds)*time.Second,
	)

	queueManager := queue.NewManager(cfg.Dispatch.PublishPerMinute, cfg.Dispatch.Burst, cfg.Dispatch.QueueCapacity)
	enqueuer := queue.NewClientEnqueuer(client)
	worker := queue.NewWorker(postRepo, logRepo, accountService, publisher, retrier)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/cancel", post.CancelPost)
	api.Post("/posts/duplicate", post.DuplicatePost)
	api.Post("/posts/reschedule", post.ReschedulePost)
	api.Post("/posts/retry", post.RetryPost)
	api.Post("/posts/remove", post.RemovePost)
	api.Get("/posts/stats", post.PostStats)
	api.Get("/posts/logs", post.PostLogs)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.UploadMedia)

	account := handlers.NewAccountHandler(accountService, *cfg)
	api.Get("/accounts", account.ListAccounts)
	api.Get("/accounts/connect", account.ConnectAccount)
	api.Post("/accounts/remove", account.RemoveAccount)
	app.Get("/auth/snapchat/callback", account.ConnectCallback)

	user := handlers.NewUserHandler(userService)
	api.Get("/me", user.GetUserInfo)

	// cron jobs
	dispatcherJob := job.NewDispatcherJob(postRepo, queueManager, enqueuer)
	seriesJob := job.NewSeriesJob(postRepo, seriesLookbackDays, cfg.Dispatch.LookAhead)
	refreshTokenJob := job.NewTokenRefreshJob(accountRepo, accountService)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", dispatcherJob.Run)
	c.AddFunc("@every 01h00m00s", seriesJob.Run)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishStory, worker.HandlePublishStoryTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
