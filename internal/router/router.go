package router

import (
	"fmt"
	"strings"

	"github.com/settle-next/internal/cache"
	"github.com/settle-next/internal/config"
	adminhandlers "github.com/settle-next/internal/http/handlers/admin"
	publichandlers "github.com/settle-next/internal/http/handlers/public"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按对外/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sn"
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "登录尝试过于频繁，请稍后重试",
	}
	hookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:hook", redisPrefix),
		WindowSeconds: cfg.Security.HookRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.HookRateLimit.MaxAttempts,
		Message:       "回调过于频繁，请稍后重试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 打款网关回调（签名校验在处理器内完成）
		apiV1.POST("/payouts/callback", RateLimitMiddleware(redisClient, hookRule, KeyByIP), publicHandler.HandlePayoutCallback)

		// 合作方接口（API Key 鉴权）
		partner := apiV1.Group("/partner")
		partner.Use(PartnerAuthMiddleware(cfg.Partner.APIKey))
		{
			partner.POST("/events/order-paid", publicHandler.HandleOrderPaidEvent)
			partner.GET("/settlements", publicHandler.GetPartnerSettlements)
			partner.GET("/settlements/:batch_no", publicHandler.GetPartnerSettlement)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)

				// 佣金策略管理
				authorized.GET("/policies", adminHandler.GetPolicies)
				authorized.GET("/policies/:id", adminHandler.GetPolicy)
				authorized.POST("/policies", adminHandler.CreatePolicy)
				authorized.PUT("/policies/:id", adminHandler.UpdatePolicy)
				authorized.DELETE("/policies/:id", adminHandler.DeletePolicy)

				// 佣金流水
				authorized.GET("/commission-transactions", adminHandler.GetCommissionTransactions)
				authorized.GET("/commission-transactions/:id", adminHandler.GetCommissionTransaction)
				authorized.POST("/commission-transactions/:id/adjust", adminHandler.AdjustCommission)

				// 结算批次
				authorized.GET("/settlement-batches", adminHandler.GetSettlementBatches)
				authorized.GET("/settlement-batches/:id", adminHandler.GetSettlementBatch)
				authorized.GET("/settlement-batches/:id/logs", adminHandler.GetSettlementBatchLogs)
				authorized.POST("/settlement-batches/build", adminHandler.BuildSettlementBatch)
				authorized.POST("/settlement-batches/build-all", adminHandler.BuildAllSettlementBatches)
				authorized.POST("/settlement-batches/:id/confirm", adminHandler.ConfirmSettlementBatch)
				authorized.POST("/settlement-batches/:id/cancel", adminHandler.CancelSettlementBatch)
				authorized.POST("/settlement-batches/:id/payout", adminHandler.RequestSettlementPayout)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
