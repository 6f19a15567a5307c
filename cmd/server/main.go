package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"leetclash/internal/api"
	"leetclash/internal/api/middleware"
	"leetclash/internal/app/generator"
	"leetclash/internal/app/judge"
	"leetclash/internal/app/service"
	"leetclash/internal/app/session"
	"leetclash/internal/app/worker"
	"leetclash/internal/common/security"
	"leetclash/internal/domain/repository"
	"leetclash/internal/platform/config"
	"leetclash/internal/platform/database"
	"leetclash/internal/platform/lease"
	"leetclash/internal/platform/llm"
	"leetclash/internal/platform/queue"
	"leetclash/internal/platform/store"
	"leetclash/internal/platform/store/memstore"
	"leetclash/internal/platform/store/redisstore"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	fmt.Println("Database connected and migrated.")

	// 4. Initialize the match store, tick leases and the judge queue
	var (
		records store.Store
		locker  lease.Locker
		tickets queue.Queue
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		records = memstore.New()
		locker = lease.NewMemoryLocker()
		tickets = queue.NewMemoryQueue(1024)
		fmt.Println("Using in-process match store.")
	default:
		queue.ConnectRedis()
		defer queue.CloseRedis()
		records = redisstore.New(queue.RDB, cfg.MatchTTL, cfg.TxMaxRetries)
		locker = lease.NewRedisLocker(queue.RDB)
		tickets = queue.NewRedisQueue(queue.RDB, cfg.JudgeQueueName)
		fmt.Println("Redis connected.")
	}

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	resultRepo := repository.NewPgResultRepository(database.DB)
	matchStore := repository.NewMatchStore(records, cfg.MatchKeyPrefix)

	// 6. Initialize the LLM-backed generator and judge
	gemini := llm.NewGemini(llm.GeminiConfig{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
	})
	problemGenerator := generator.NewLLMGenerator(gemini)
	llmJudge := judge.NewLLMJudge(gemini, cfg.JudgeTimeout)

	// 7. Initialize Services
	clock := clockwork.NewRealClock()
	authService := service.NewAuthService(userRepo)
	problemService := service.NewProblemService(problemGenerator, problemRepo)
	soloService := service.NewSoloService(problemService, llmJudge, clock, cfg.MatchTTL)
	matchService := service.NewMatchService(matchStore, problemService, tickets, clock)
	resultService := service.NewResultService(resultRepo)

	// 8. Initialize the scheduler and the duel host
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	host := session.NewHost(scheduler, matchService, resultService, locker, cfg.TickLeaseTTL)

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() { soloService.Prune() }),
		gocron.WithName("prune solo games"),
	)
	if err != nil {
		log.Fatalf("Failed to schedule solo pruning: %v", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			host.Sweep(ctx)
		}),
		gocron.WithName("sweep duel sessions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Fatalf("Failed to schedule session sweep: %v", err)
	}
	scheduler.Start()
	fmt.Println("Scheduler started.")

	// 9. Initialize Judge Worker (as a goroutine). JUDGE_WORKERS=0 leaves
	// judging to dedicated worker processes.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.JudgeWorkers > 0 || cfg.StoreBackend == config.StoreBackendMemory {
		judgeWorker := worker.NewJudgeWorker(tickets, llmJudge, matchService, cfg.JudgeWorkers)
		go func() {
			defer close(workerDone)
			judgeWorker.Start(workerCtx)
		}()
		fmt.Println("Judge worker started.")
	} else {
		close(workerDone)
	}

	// 10. Initialize Router & HTTP Server
	router := api.NewRouter(authService, problemService, soloService, matchService, resultService, host)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: middleware.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 11. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	workerCancel() // Signal worker to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server shutdown failed: %v", err)
	}
	host.Stop()
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("WARN: Scheduler shutdown: %v", err)
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Println("WARN: Judge worker did not stop in time.")
	}

	log.Println("Server and worker stopped gracefully.")
}
