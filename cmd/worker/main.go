// Command worker runs judge loops without the HTTP API, for deployments that
// scale judging separately. It needs the Redis backend so it can share the
// ticket queue and match records with the API nodes.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"

	"leetclash/internal/app/judge"
	"leetclash/internal/app/service"
	"leetclash/internal/app/worker"
	"leetclash/internal/domain/repository"
	"leetclash/internal/platform/config"
	"leetclash/internal/platform/llm"
	"leetclash/internal/platform/queue"
	"leetclash/internal/platform/store/redisstore"
)

func main() {
	log.Println("Judge worker service starting...")

	config.Load()
	cfg := config.AppConfig
	if cfg.StoreBackend != config.StoreBackendRedis {
		log.Fatalf("worker needs STORE_BACKEND=%s, got %q", config.StoreBackendRedis, cfg.StoreBackend)
	}

	queue.ConnectRedis()
	defer queue.CloseRedis()

	matchStore := repository.NewMatchStore(redisstore.New(queue.RDB, cfg.MatchTTL, cfg.TxMaxRetries), cfg.MatchKeyPrefix)
	matches := service.NewMatchService(matchStore, nil, nil, clockwork.NewRealClock())
	gemini := llm.NewGemini(llm.GeminiConfig{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
	})
	tickets := queue.NewRedisQueue(queue.RDB, cfg.JudgeQueueName)
	judgeWorker := worker.NewJudgeWorker(tickets, judge.NewLLMJudge(gemini, cfg.JudgeTimeout), matches, cfg.JudgeWorkers)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// Graceful shutdown on SIGINT or SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	wg.Add(1)
	go func() {
		defer wg.Done()
		judgeWorker.Start(ctx)
	}()

	<-sigs
	log.Println("Shutdown signal received.")
	cancel()

	// In-flight judgements finish before the loops return.
	wg.Wait()
	log.Println("Worker exited cleanly.")
}
