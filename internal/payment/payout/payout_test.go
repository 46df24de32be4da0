package payout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSignDeterministicAndOrdered(t *testing.T) {
	params := map[string]interface{}{
		"batch_no": "ST0001",
		"amount":   80.5,
		"status":   2,
	}
	first := Sign(params, "token-a")
	second := Sign(params, "token-a")
	if first != second {
		t.Fatalf("sign must be deterministic: %s vs %s", first, second)
	}
	if Sign(params, "token-b") == first {
		t.Fatalf("different token must change signature")
	}

	// 空值与 signature 字段不参与签名
	withNoise := map[string]interface{}{
		"batch_no":  "ST0001",
		"amount":    80.5,
		"status":    2,
		"reason":    "",
		"extra":     nil,
		"signature": "whatever",
	}
	if Sign(withNoise, "token-a") != first {
		t.Fatalf("empty values and signature field must be excluded from signing")
	}
}

func TestVerifyCallback(t *testing.T) {
	cfg := &Config{GatewayURL: "https://payout.example.com", AuthToken: "token-a"}

	data := &CallbackData{
		TradeNo: "TRADE-001",
		BatchNo: "ST0001",
		Amount:  80.5,
		Status:  StatusSuccess,
	}
	data.Signature = Sign(map[string]interface{}{
		"trade_no": data.TradeNo,
		"batch_no": data.BatchNo,
		"amount":   data.GetAmount(),
		"status":   data.Status,
		"reason":   data.Reason,
	}, cfg.AuthToken)

	if err := VerifyCallback(cfg, data); err != nil {
		t.Fatalf("valid signature should verify: %v", err)
	}

	// 大小写不敏感
	upper := *data
	upper.Signature = strings.ToUpper(upper.Signature)
	if err := VerifyCallback(cfg, &upper); err != nil {
		t.Fatalf("signature comparison should be case-insensitive: %v", err)
	}

	tampered := *data
	tampered.Amount = 999.99
	if err := VerifyCallback(cfg, &tampered); err != ErrSignatureInvalid {
		t.Fatalf("tampered amount want ErrSignatureInvalid got %v", err)
	}
	if err := VerifyCallback(nil, data); err != ErrConfigInvalid {
		t.Fatalf("nil config want ErrConfigInvalid got %v", err)
	}
}

func TestParseCallback(t *testing.T) {
	body := []byte(`{"trade_no":"TRADE-001","batch_no":"ST0001","amount":"80.50","status":2,"signature":"abc"}`)
	data, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if data.TradeNo != "TRADE-001" || data.BatchNo != "ST0001" {
		t.Fatalf("parsed identifiers mismatch: %+v", data)
	}
	// 金额可能是字符串或数字，统一转 float64
	if data.GetAmount() != 80.5 {
		t.Fatalf("amount want 80.5 got %v", data.GetAmount())
	}

	if _, err := ParseCallback(nil); err == nil {
		t.Fatalf("empty body should fail")
	}
	if _, err := ParseCallback([]byte("{broken")); err == nil {
		t.Fatalf("broken json should fail")
	}
}

func TestCreateTransfer(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transfer/create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 200,
			"message":     "ok",
			"data": map[string]interface{}{
				"trade_no": "TRADE-100",
				"batch_no": "ST0001",
				"amount":   "80.00",
				"status":   StatusProcessing,
			},
		})
	}))
	defer server.Close()

	cfg := &Config{GatewayURL: server.URL + "/", AuthToken: "token-a", NotifyURL: "https://merchant.example.com/callback"}
	cfg.Normalize()

	result, err := CreateTransfer(context.Background(), cfg, CreateInput{
		BatchNo:   "ST0001",
		Amount:    "80.00",
		Currency:  "CNY",
		PartyType: "seller",
		PartyID:   77,
	})
	if err != nil {
		t.Fatalf("create transfer failed: %v", err)
	}
	if result.TradeNo != "TRADE-100" || result.Status != StatusProcessing {
		t.Fatalf("result mismatch: %+v", result)
	}

	// 请求必须带签名与回落的 notify_url
	if received["signature"] == nil || received["signature"] == "" {
		t.Fatalf("request should carry a signature")
	}
	if received["notify_url"] != "https://merchant.example.com/callback" {
		t.Fatalf("notify_url should fall back to config, got %v", received["notify_url"])
	}
}

func TestCreateTransferErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 400,
			"message":     "insufficient balance",
		})
	}))
	defer server.Close()

	cfg := &Config{GatewayURL: server.URL, AuthToken: "token-a"}
	if _, err := CreateTransfer(context.Background(), cfg, CreateInput{BatchNo: "ST0001", Amount: "80.00"}); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("gateway error want ErrResponseInvalid got %v", err)
	}

	if _, err := CreateTransfer(context.Background(), nil, CreateInput{BatchNo: "ST0001", Amount: "80.00"}); err != ErrConfigInvalid {
		t.Fatalf("nil config want ErrConfigInvalid got %v", err)
	}
	if _, err := CreateTransfer(context.Background(), cfg, CreateInput{BatchNo: "", Amount: "80.00"}); err != ErrConfigInvalid {
		t.Fatalf("empty batch no want ErrConfigInvalid got %v", err)
	}
	if _, err := CreateTransfer(context.Background(), cfg, CreateInput{BatchNo: "ST0001", Amount: "eighty"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("bad amount want ErrConfigInvalid got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(nil); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("nil config want ErrConfigInvalid got %v", err)
	}
	if err := ValidateConfig(&Config{AuthToken: "t"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing gateway url want ErrConfigInvalid got %v", err)
	}
	if err := ValidateConfig(&Config{GatewayURL: "https://x"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing token want ErrConfigInvalid got %v", err)
	}
	if err := ValidateConfig(&Config{GatewayURL: "https://x", AuthToken: "t"}); err != nil {
		t.Fatalf("valid config should pass: %v", err)
	}
}

func TestToBatchStatus(t *testing.T) {
	if ToBatchStatus(StatusSuccess) != "success" {
		t.Fatalf("success status mapping broken")
	}
	if ToBatchStatus(StatusFailed) != "failed" {
		t.Fatalf("failed status mapping broken")
	}
	if ToBatchStatus(StatusProcessing) != "processing" || ToBatchStatus(0) != "processing" {
		t.Fatalf("unknown status should map to processing")
	}
}
