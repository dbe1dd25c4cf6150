package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

// MoMo result codes that mean the payment is still in flight.
var momoPendingCodes = map[int]bool{
	1000: true,
	1001: true,
	1002: true,
	1003: true,
	9000: true,
}

// MoMo signs payloads with HMAC-SHA256 over an ordered key=value& string.
type MoMo struct {
	cfg    config.MoMoConfig
	client *http.Client
}

func NewMoMo(cfg config.MoMoConfig, client *http.Client) *MoMo {
	if client == nil {
		client = http.DefaultClient
	}
	return &MoMo{cfg: cfg, client: client}
}

func (m *MoMo) Code() enums.GatewayCode {
	return enums.GatewayMoMo
}

func (m *MoMo) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	amount := req.Amount.StringFixed(0)
	requestID := req.TransactionID

	rawSig := fmt.Sprintf(
		"accessKey=%s&amount=%s&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		m.cfg.AccessKey, amount, "", m.cfg.NotifyURL, req.TransactionID, req.Description,
		m.cfg.PartnerCode, m.cfg.ReturnURL, requestID, "captureWallet",
	)

	payload := map[string]any{
		"partnerCode": m.cfg.PartnerCode,
		"requestId":   requestID,
		"amount":      amount,
		"orderId":     req.TransactionID,
		"orderInfo":   req.Description,
		"redirectUrl": m.cfg.ReturnURL,
		"ipnUrl":      m.cfg.NotifyURL,
		"requestType": "captureWallet",
		"extraData":   "",
		"lang":        "vi",
		"signature":   hmacSHA256(m.cfg.SecretKey, rawSig),
	}

	var resp struct {
		ResultCode int    `json:"resultCode"`
		Message    string `json:"message"`
		PayURL     string `json:"payUrl"`
	}
	if err := postJSON(ctx, m.client, m.cfg.Endpoint+"/v2/gateway/api/create", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ResultCode != 0 {
		return nil, errors.New(errors.CodeGatewayUnavailable,
			fmt.Sprintf("momo create payment rejected with code %d: %s", resp.ResultCode, resp.Message))
	}

	return &CreateResponse{
		PayURL: resp.PayURL,
		Raw: map[string]any{
			"resultCode": resp.ResultCode,
			"message":    resp.Message,
			"payUrl":     resp.PayURL,
		},
	}, nil
}

func (m *MoMo) VerifyCallback(cb Callback) (*Result, error) {
	var ipn struct {
		PartnerCode string `json:"partnerCode"`
		OrderID     string `json:"orderId"`
		RequestID   string `json:"requestId"`
		Amount      int64  `json:"amount"`
		OrderInfo   string `json:"orderInfo"`
		OrderType   string `json:"orderType"`
		TransID     int64  `json:"transId"`
		ResultCode  int    `json:"resultCode"`
		Message     string `json:"message"`
		PayType     string `json:"payType"`
		ResponseTime int64 `json:"responseTime"`
		ExtraData   string `json:"extraData"`
		Signature   string `json:"signature"`
	}
	if err := json.Unmarshal(cb.Body, &ipn); err != nil {
		return nil, ErrInvalidSignature
	}

	rawSig := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		m.cfg.AccessKey, ipn.Amount, ipn.ExtraData, ipn.Message, ipn.OrderID, ipn.OrderInfo,
		ipn.OrderType, ipn.PartnerCode, ipn.PayType, ipn.RequestID, ipn.ResponseTime,
		ipn.ResultCode, ipn.TransID,
	)
	if !hmac.Equal([]byte(ipn.Signature), []byte(hmacSHA256(m.cfg.SecretKey, rawSig))) {
		return nil, ErrInvalidSignature
	}

	outcome := momoOutcome(ipn.ResultCode)

	return &Result{
		TransactionID:        ipn.OrderID,
		Outcome:              outcome,
		GatewayTransactionID: strconv.FormatInt(ipn.TransID, 10),
		ResponseCode:         strconv.Itoa(ipn.ResultCode),
		Amount:               decimal.NewFromInt(ipn.Amount),
		Raw: map[string]any{
			"resultCode": ipn.ResultCode,
			"message":    ipn.Message,
			"transId":    ipn.TransID,
			"payType":    ipn.PayType,
		},
		Source:        SourceWebhook,
		FailureReason: failureReason(outcome, "momo result code "+strconv.Itoa(ipn.ResultCode)+": "+ipn.Message),
	}, nil
}

func (m *MoMo) QueryStatus(ctx context.Context, transactionID string, _ time.Time) (*Result, error) {
	rawSig := fmt.Sprintf(
		"accessKey=%s&orderId=%s&partnerCode=%s&requestId=%s",
		m.cfg.AccessKey, transactionID, m.cfg.PartnerCode, transactionID,
	)

	payload := map[string]any{
		"partnerCode": m.cfg.PartnerCode,
		"requestId":   transactionID,
		"orderId":     transactionID,
		"lang":        "vi",
		"signature":   hmacSHA256(m.cfg.SecretKey, rawSig),
	}

	var resp struct {
		ResultCode int    `json:"resultCode"`
		Message    string `json:"message"`
		TransID    int64  `json:"transId"`
		Amount     int64  `json:"amount"`
	}
	if err := postJSON(ctx, m.client, m.cfg.Endpoint+"/v2/gateway/api/query", payload, &resp); err != nil {
		return nil, err
	}

	outcome := momoOutcome(resp.ResultCode)

	return &Result{
		TransactionID:        transactionID,
		Outcome:              outcome,
		GatewayTransactionID: strconv.FormatInt(resp.TransID, 10),
		ResponseCode:         strconv.Itoa(resp.ResultCode),
		Amount:               decimal.NewFromInt(resp.Amount),
		Raw: map[string]any{
			"resultCode": resp.ResultCode,
			"message":    resp.Message,
			"transId":    resp.TransID,
		},
		Source:        SourceReconciliation,
		FailureReason: failureReason(outcome, "momo result code "+strconv.Itoa(resp.ResultCode)+": "+resp.Message),
	}, nil
}

func momoOutcome(resultCode int) Outcome {
	switch {
	case resultCode == 0:
		return OutcomeSuccess
	case momoPendingCodes[resultCode]:
		return OutcomePending
	default:
		return OutcomeFailed
	}
}

func hmacSHA256(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
