package public

import (
	"io"

	"github.com/settle-next/internal/payment/payout"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// HandlePayoutCallback 处理打款网关异步回调
// 网关按约定重试，除处理失败外一律应答 success 终止重试。
func (h *Handler) HandlePayoutCallback(c *gin.Context) {
	log := requestLog(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(200, "fail")
		return
	}

	data, err := payout.ParseCallback(body)
	if err != nil {
		log.Warnw("payout_callback_parse_failed", "error", err)
		c.String(200, "fail")
		return
	}
	if data.BatchNo == "" || data.TradeNo == "" {
		log.Warnw("payout_callback_missing_fields", "batch_no", data.BatchNo, "trade_no", data.TradeNo)
		c.String(200, "fail")
		return
	}

	cfg := &payout.Config{
		GatewayURL: h.Config.Payout.GatewayURL,
		AuthToken:  h.Config.Payout.AuthToken,
	}
	cfg.Normalize()
	if err := payout.VerifyCallback(cfg, data); err != nil {
		log.Warnw("payout_callback_signature_invalid", "batch_no", data.BatchNo, "error", err)
		c.String(200, "fail")
		return
	}

	log.Infow("payout_callback_received",
		"batch_no", data.BatchNo,
		"trade_no", data.TradeNo,
		"status", data.Status,
	)

	// 处理中状态仅应答，等待终态回调
	if data.Status == payout.StatusProcessing {
		c.String(200, "success")
		return
	}

	input := service.PayoutCallbackInput{
		BatchNo: data.BatchNo,
		TradeNo: data.TradeNo,
		Amount:  decimal.NewFromFloat(data.GetAmount()),
		Success: data.Status == payout.StatusSuccess,
		Reason:  data.Reason,
	}
	if err := h.SettlementService.HandlePayoutCallback(input); err != nil {
		log.Errorw("payout_callback_handle_failed", "batch_no", data.BatchNo, "error", err)
		c.String(200, "fail")
		return
	}

	c.String(200, "success")
}
