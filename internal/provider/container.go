package provider

import (
	"github.com/settle-next/internal/cache"
	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/queue"
	"github.com/settle-next/internal/repository"
	"github.com/settle-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config *config.Config
	Queue  *queue.Client

	// Repositories
	AdminRepo         repository.AdminRepository
	PolicyRepo        repository.PolicyRepository
	CommissionTxnRepo repository.CommissionTransactionRepository
	SettlementRepo    repository.SettlementBatchRepository
	SettlementLogRepo repository.SettlementLogRepository

	// Services
	AuthService       *service.AuthService
	PolicyService     *service.PolicyService
	CommissionService *service.CommissionService
	SettlementService *service.SettlementService
	WebhookService    *service.WebhookService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient = nil
	}

	c := &Container{
		Config: cfg,
		Queue:  queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.PolicyRepo = repository.NewPolicyRepository(db)
	c.CommissionTxnRepo = repository.NewCommissionTransactionRepository(db)
	c.SettlementRepo = repository.NewSettlementBatchRepository(db)
	c.SettlementLogRepo = repository.NewSettlementLogRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.PolicyService = service.NewPolicyService(c.Config, c.PolicyRepo)
	c.CommissionService = service.NewCommissionService(c.Config, c.CommissionTxnRepo, c.SettlementRepo, c.PolicyService)
	c.SettlementService = service.NewSettlementService(c.Config, c.SettlementRepo, c.CommissionTxnRepo, c.SettlementLogRepo, c.Queue)
	c.WebhookService = service.NewWebhookService(c.Config, c.SettlementRepo)
}
