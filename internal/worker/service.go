package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name      string
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	consumer  *Consumer
}

// NewService 创建异步队列服务
// buildCron 非空时注册周期结算定时任务，任务不带周期键，消费侧结算上一个自然月。
func NewService(cfg *config.QueueConfig, buildCron string, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	var scheduler *asynq.Scheduler
	if cron := strings.TrimSpace(buildCron); cron != "" {
		scheduler = asynq.NewScheduler(opt, nil)
		task, err := queue.NewSettlementBuildAllTask(queue.SettlementBuildAllPayload{})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cron, task, asynq.Queue(queue.DefaultQueue)); err != nil {
			return nil, err
		}
	}

	return &Service{
		name:      "worker",
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		consumer:  consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	_ = ctx
	if s.scheduler != nil {
		go func() {
			if err := s.scheduler.Run(); err != nil {
				logger.Errorw("worker_scheduler_run_failed", "error", err)
			}
		}()
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}
