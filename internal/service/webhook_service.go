package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/repository"
)

// webhookSignatureHeader 合作方通知签名头
const webhookSignatureHeader = "X-Webhook-Signature"

// SignWebhookPayload 对通知报文体计算 HMAC-SHA256 签名（小写十六进制）
func SignWebhookPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookService 合作方结算通知服务
// 批次确认、打款完成后向合作方回调地址推送签名通知。
type WebhookService struct {
	cfg       *config.Config
	batchRepo repository.SettlementBatchRepository
}

// NewWebhookService 创建合作方通知服务
func NewWebhookService(cfg *config.Config, batchRepo repository.SettlementBatchRepository) *WebhookService {
	return &WebhookService{
		cfg:       cfg,
		batchRepo: batchRepo,
	}
}

// Enabled 判断通知是否启用
func (s *WebhookService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Webhook.Enabled && strings.TrimSpace(s.cfg.Webhook.Endpoint) != ""
}

// NotifyPartner 推送批次事件通知
// 通知失败返回错误交由队列重试。
func (s *WebhookService) NotifyPartner(ctx context.Context, batchID uint, event string) error {
	if !s.Enabled() {
		return nil
	}
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return ErrBatchNotFound
	}

	params := map[string]interface{}{
		"event":          strings.TrimSpace(event),
		"batch_no":       batch.BatchNo,
		"party_type":     batch.PartyType,
		"party_id":       batch.PartyID,
		"period_key":     batch.PeriodKey,
		"status":         batch.Status,
		"payable_amount": batch.PayableAmount.String(),
		"currency":       batch.Currency,
		"timestamp":      time.Now().Unix(),
	}
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	timeout := time.Duration(s.cfg.Webhook.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.cfg.Webhook.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhookSignatureHeader, SignWebhookPayload(s.cfg.Webhook.Secret, body))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("partner webhook http status %d", resp.StatusCode)
	}

	logger.Infow("partner_webhook_sent", "batch_no", batch.BatchNo, "event", event)
	return nil
}
