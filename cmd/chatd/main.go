package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	cacheadapter "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/adapter"
	cacheport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/database"
	queueadapter "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/queue/adapter"
	qport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/queue/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/realtime"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/application/task"
	repoadapter "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/adapter"
	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
	msghttp "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/presentation/http"
	"github.com/5h1ro0o/recherche-auto-sub000/pkg/logger"
)

// chatd is the messaging backend the client core talks to: history fetch,
// send request, upload endpoint and the realtime channel. Postgres, Redis
// and the notification queue are all optional so a dev instance can run
// from memory with no services at all.
func main() {
	if err := godotenv.Load(); err != nil {
		// .env is a dev convenience, not a requirement
		_ = err
	}
	logger.Init("")
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo repository.MessageRepository
	if os.Getenv("DB_URL") != "" {
		poolCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := database.NewPoolFromEnv(poolCtx)
		cancel()
		if err != nil {
			log.Fatal("connect postgres", zap.Error(err))
		}
		defer pool.Close()
		repo = repoadapter.NewPgMessageRepository(pool)
		log.Info("message store: postgres")
	} else {
		repo = repoadapter.NewMemoryMessageRepository()
		log.Info("message store: in-memory")
	}

	var cache cacheport.Cache
	var queue qport.Client
	if os.Getenv("REDIS_URL") != "" {
		c, err := cacheadapter.NewRedisAdapter()
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer c.Close()
		cache = c

		q, err := queueadapter.NewAsynqClientFromEnv()
		if err != nil {
			log.Fatal("asynq client", zap.Error(err))
		}
		defer q.Close()
		queue = q

		worker, err := queueadapter.NewAsynqServer(log)
		if err != nil {
			log.Fatal("asynq server", zap.Error(err))
		}
		task.RegisterNotifyOfflineTask(worker, log)
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error("asynq worker stopped", zap.Error(err))
			}
		}()
	}

	hub := realtime.NewHub()
	defer hub.Close()

	uploadDir := os.Getenv("CHATD_UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.Static("/uploads", uploadDir)

	msghttp.RegisterRoutes(r.Group("/api/v1"), msghttp.Deps{
		Repo:      repo,
		Cache:     cache,
		Queue:     queue,
		Hub:       hub,
		UploadDir: uploadDir,
		Log:       log,
	})

	addr := os.Getenv("CHATD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("chatd listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("serve", zap.Error(err))
	}
}
