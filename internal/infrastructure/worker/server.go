package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// SyncExecutor runs one sync work item to completion. The application layer
// provides the implementation; the worker only decodes and dispatches.
type SyncExecutor interface {
	ExecuteSync(ctx context.Context, integrationID uuid.UUID, kind connector.SyncKind, window connector.OrderWindow) error
}

// Server runs the background sync worker pool on top of the durable queue
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer creates the worker server
func NewServer(redisCfg config.RedisConfig, syncCfg config.SyncConfig, logger *zap.Logger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisCfg.RedisAddr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		asynq.Config{
			Concurrency: syncCfg.WorkerConcurrency,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(1<<uint(n)) * time.Second
			},
			Logger: newAsynqLogger(logger),
		},
	)

	return &Server{
		server: srv,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
}

// RegisterSyncExecutor wires the sync task handler
func (s *Server) RegisterSyncExecutor(executor SyncExecutor) {
	s.mux.HandleFunc(TypeIntegrationSync, func(ctx context.Context, task *asynq.Task) error {
		var payload SyncTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// A payload that cannot decode will never succeed; skip retries.
			s.logger.Error("Dropping malformed sync task", zap.Error(err))
			return fmt.Errorf("worker: malformed sync payload: %v: %w", err, asynq.SkipRetry)
		}

		s.logger.Info("Processing sync task",
			zap.String("integration_id", payload.IntegrationID.String()),
			zap.String("kind", string(payload.Kind)),
		)
		return executor.ExecuteSync(ctx, payload.IntegrationID, payload.Kind, payload.SyncWindow())
	})
}

// Start begins processing queued work
func (s *Server) Start() error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("worker: failed to start server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight work and stops the pool
func (s *Server) Shutdown() {
	s.server.Shutdown()
}

// asynqLogger adapts zap to the asynq logging interface
type asynqLogger struct {
	logger *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.Named("asynq").Sugar()}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal(args...) }

// SyncWindow converts the payload window back to the domain value
func (p SyncTaskPayload) SyncWindow() connector.OrderWindow {
	return connector.OrderWindow{Start: p.WindowStart, End: p.WindowEnd}
}
