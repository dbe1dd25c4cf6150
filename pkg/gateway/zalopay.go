package gateway

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/config"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	"github.com/owlscommerce/owls-backend/pkg/errors"
)

// ZaloPay uses two HMAC-SHA256 keys: key1 signs outbound requests, key2
// verifies callback payloads. The gateway-side reference is app_trans_id,
// a yymmdd_ prefix ahead of our transaction id.
type ZaloPay struct {
	cfg    config.ZaloPayConfig
	client *http.Client
}

func NewZaloPay(cfg config.ZaloPayConfig, client *http.Client) *ZaloPay {
	if client == nil {
		client = http.DefaultClient
	}
	return &ZaloPay{cfg: cfg, client: client}
}

func (z *ZaloPay) Code() enums.GatewayCode {
	return enums.GatewayZaloPay
}

func appTransID(transactionID string, createdAt time.Time) string {
	return createdAt.Format("060102") + "_" + transactionID
}

func (z *ZaloPay) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	transID := appTransID(req.TransactionID, req.CreatedAt)
	amount := req.Amount.StringFixed(0)
	appTime := req.CreatedAt.UnixMilli()

	embedData := "{}"
	items := "[]"

	// mac = HMAC(key1, app_id|app_trans_id|app_user|amount|app_time|embed_data|item)
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s",
		z.cfg.AppID, transID, "owls", amount, appTime, embedData, items)

	payload := map[string]any{
		"app_id":       z.cfg.AppID,
		"app_trans_id": transID,
		"app_user":     "owls",
		"app_time":     appTime,
		"amount":       amount,
		"description":  req.Description,
		"embed_data":   embedData,
		"item":         items,
		"callback_url": z.cfg.CallbackURL,
		"mac":          hmacSHA256(z.cfg.Key1, data),
	}

	var resp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
		OrderURL      string `json:"order_url"`
		ZpTransToken  string `json:"zp_trans_token"`
	}
	if err := postJSON(ctx, z.client, z.cfg.Endpoint+"/v2/create", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ReturnCode != 1 {
		return nil, errors.New(errors.CodeGatewayUnavailable,
			fmt.Sprintf("zalopay create payment rejected with code %d: %s", resp.ReturnCode, resp.ReturnMessage))
	}

	return &CreateResponse{
		PayURL: resp.OrderURL,
		Raw: map[string]any{
			"return_code":    resp.ReturnCode,
			"return_message": resp.ReturnMessage,
			"order_url":      resp.OrderURL,
			"zp_trans_token": resp.ZpTransToken,
		},
	}, nil
}

func (z *ZaloPay) VerifyCallback(cb Callback) (*Result, error) {
	var envelope struct {
		Data string `json:"data"`
		Mac  string `json:"mac"`
		Type int    `json:"type"`
	}
	if err := json.Unmarshal(cb.Body, &envelope); err != nil {
		return nil, ErrInvalidSignature
	}

	if !hmac.Equal([]byte(envelope.Mac), []byte(hmacSHA256(z.cfg.Key2, envelope.Data))) {
		return nil, ErrInvalidSignature
	}

	var data struct {
		AppTransID string `json:"app_trans_id"`
		ZpTransID  int64  `json:"zp_trans_id"`
		Amount     int64  `json:"amount"`
	}
	if err := json.Unmarshal([]byte(envelope.Data), &data); err != nil {
		return nil, ErrInvalidSignature
	}

	return &Result{
		TransactionID:        stripAppTransPrefix(data.AppTransID),
		Outcome:              OutcomeSuccess,
		GatewayTransactionID: strconv.FormatInt(data.ZpTransID, 10),
		ResponseCode:         "1",
		Amount:               decimal.NewFromInt(data.Amount),
		Raw: map[string]any{
			"app_trans_id": data.AppTransID,
			"zp_trans_id":  data.ZpTransID,
			"amount":       data.Amount,
		},
		Source: SourceWebhook,
	}, nil
}

func (z *ZaloPay) QueryStatus(ctx context.Context, transactionID string, createdAt time.Time) (*Result, error) {
	transID := appTransID(transactionID, createdAt)

	data := fmt.Sprintf("%s|%s|%s", z.cfg.AppID, transID, z.cfg.Key1)

	payload := map[string]any{
		"app_id":       z.cfg.AppID,
		"app_trans_id": transID,
		"mac":          hmacSHA256(z.cfg.Key1, data),
	}

	var resp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
		ZpTransID     int64  `json:"zp_trans_id"`
		Amount        int64  `json:"amount"`
		IsProcessing  bool   `json:"is_processing"`
	}
	if err := postJSON(ctx, z.client, z.cfg.Endpoint+"/v2/query", payload, &resp); err != nil {
		return nil, err
	}

	var outcome Outcome
	switch resp.ReturnCode {
	case 1:
		outcome = OutcomeSuccess
	case 2:
		outcome = OutcomeFailed
	default:
		outcome = OutcomePending
	}
	if resp.IsProcessing {
		outcome = OutcomePending
	}

	return &Result{
		TransactionID:        transactionID,
		Outcome:              outcome,
		GatewayTransactionID: strconv.FormatInt(resp.ZpTransID, 10),
		ResponseCode:         strconv.Itoa(resp.ReturnCode),
		Amount:               decimal.NewFromInt(resp.Amount),
		Raw: map[string]any{
			"return_code":    resp.ReturnCode,
			"return_message": resp.ReturnMessage,
			"zp_trans_id":    resp.ZpTransID,
		},
		Source:        SourceReconciliation,
		FailureReason: failureReason(outcome, "zalopay return code "+strconv.Itoa(resp.ReturnCode)+": "+resp.ReturnMessage),
	}, nil
}

func stripAppTransPrefix(appTransID string) string {
	if len(appTransID) > 7 && appTransID[6] == '_' {
		return appTransID[7:]
	}
	return appTransID
}
