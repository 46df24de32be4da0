package payout

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("payout config invalid")
	ErrRequestFailed    = errors.New("payout request failed")
	ErrResponseInvalid  = errors.New("payout response invalid")
	ErrSignatureInvalid = errors.New("payout signature invalid")
)

// 打款状态常量
const (
	StatusProcessing = 1 // 处理中
	StatusSuccess    = 2 // 打款成功
	StatusFailed     = 3 // 打款失败
)

// Config 打款网关配置
type Config struct {
	GatewayURL string `json:"gateway_url"` // 网关地址
	AuthToken  string `json:"auth_token"`  // API Token
	NotifyURL  string `json:"notify_url"`  // 异步通知地址
}

// CreateInput 创建打款单输入
type CreateInput struct {
	BatchNo   string
	Amount    string
	Currency  string
	PartyType string
	PartyID   uint
	NotifyURL string
}

// CreateResult 创建打款单结果
type CreateResult struct {
	TradeNo string                 // 网关打款流水号
	BatchNo string                 // 商户批次号
	Amount  string                 // 打款金额
	Status  int                    // 打款状态
	Raw     map[string]interface{} // 原始响应
}

// CallbackData 打款回调数据
type CallbackData struct {
	TradeNo   string      `json:"trade_no"`
	BatchNo   string      `json:"batch_no"`
	Amount    interface{} `json:"amount"` // 可能是 float64 或 string
	Status    int         `json:"status"`
	Reason    string      `json:"reason"`
	Signature string      `json:"signature"`
}

// GetAmount 获取金额（float64）
func (c *CallbackData) GetAmount() float64 {
	switch v := c.Amount.(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return fmt.Errorf("%w: gateway_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return fmt.Errorf("%w: auth_token is required", ErrConfigInvalid)
	}
	return nil
}

// Normalize 规整配置
func (c *Config) Normalize() {
	c.GatewayURL = strings.TrimRight(strings.TrimSpace(c.GatewayURL), "/")
	c.AuthToken = strings.TrimSpace(c.AuthToken)
	c.NotifyURL = strings.TrimSpace(c.NotifyURL)
}

// CreateTransfer 创建打款单
func CreateTransfer(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if cfg == nil {
		return nil, ErrConfigInvalid
	}
	if input.BatchNo == "" || input.Amount == "" {
		return nil, ErrConfigInvalid
	}

	notifyURL := input.NotifyURL
	if notifyURL == "" {
		notifyURL = cfg.NotifyURL
	}

	amountFloat, err := strconv.ParseFloat(input.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"batch_no":   input.BatchNo,
		"amount":     amountFloat,
		"currency":   input.Currency,
		"party_type": input.PartyType,
		"party_id":   input.PartyID,
		"notify_url": notifyURL,
	}
	params["signature"] = Sign(params, cfg.AuthToken)

	endpoint := cfg.GatewayURL + "/api/v1/transfer/create"
	respBytes, err := postJSON(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			TradeNo string `json:"trade_no"`
			BatchNo string `json:"batch_no"`
			Amount  string `json:"amount"`
			Status  int    `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Message)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)

	return &CreateResult{
		TradeNo: resp.Data.TradeNo,
		BatchNo: resp.Data.BatchNo,
		Amount:  resp.Data.Amount,
		Status:  resp.Data.Status,
		Raw:     raw,
	}, nil
}

// VerifyCallback 验证回调签名
func VerifyCallback(cfg *Config, data *CallbackData) error {
	if cfg == nil || data == nil {
		return ErrConfigInvalid
	}

	params := map[string]interface{}{
		"trade_no": data.TradeNo,
		"batch_no": data.BatchNo,
		"amount":   data.GetAmount(),
		"status":   data.Status,
		"reason":   data.Reason,
	}

	expected := Sign(params, cfg.AuthToken)
	if !strings.EqualFold(expected, data.Signature) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseCallback 解析回调数据
func ParseCallback(body []byte) (*CallbackData, error) {
	if len(body) == 0 {
		return nil, ErrResponseInvalid
	}
	var data CallbackData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &data, nil
}

// Sign 生成签名
// 签名规则：
// 1. 筛选所有非空且非 signature 的参数
// 2. 按参数名 ASCII 码从小到大排序
// 3. 按 key=value 格式拼接，使用 & 连接
// 4. 在末尾追加 AuthToken（无 & 符号）
// 5. MD5 加密并转小写
func Sign(params map[string]interface{}, authToken string) string {
	var keys []string
	for k, v := range params {
		if k == "signature" {
			continue
		}
		if isEmptyValue(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		v := params[k]
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}

	content := strings.Join(pairs, "&") + authToken
	sum := md5.Sum([]byte(content))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

func postJSON(ctx context.Context, endpoint string, params map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ToBatchStatus 将网关状态转换为批次侧语义
func ToBatchStatus(status int) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "processing"
	}
}
