package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/config"
	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// VNPay signs requests with HMAC-SHA512 over the sorted, URL-encoded query
// string. Amounts travel as VND multiplied by 100.
type VNPay struct {
	cfg    config.VNPayConfig
	client *http.Client
	now    func() time.Time
}

// NewVNPay builds the VNPay adapter.
func NewVNPay(cfg config.VNPayConfig, client *http.Client) *VNPay {
	if client == nil {
		client = http.DefaultClient
	}
	return &VNPay{cfg: cfg, client: client, now: time.Now}
}

func (v *VNPay) Code() enums.GatewayCode {
	return enums.GatewayVNPay
}

func (v *VNPay) CreatePayment(_ context.Context, req CreateRequest) (*CreateResponse, error) {
	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Amount", req.Amount.Mul(decimal.NewFromInt(100)).StringFixed(0))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.TransactionID)
	params.Set("vnp_OrderInfo", req.Description)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", req.CreatedAt.Format("20060102150405"))

	signature := v.sign(params)
	params.Set("vnp_SecureHash", signature)

	raw := make(map[string]any, len(params))
	for key := range params {
		raw[key] = params.Get(key)
	}

	return &CreateResponse{
		PayURL: v.cfg.PaymentURL + "?" + params.Encode(),
		Raw:    raw,
	}, nil
}

func (v *VNPay) VerifyCallback(cb Callback) (*Result, error) {
	params := url.Values{}
	for key, values := range cb.Query {
		if len(values) > 0 {
			params.Set(key, values[0])
		}
	}

	received := params.Get("vnp_SecureHash")
	params.Del("vnp_SecureHash")
	params.Del("vnp_SecureHashType")

	if received == "" || !hmac.Equal([]byte(strings.ToLower(received)), []byte(v.sign(params))) {
		return nil, ErrInvalidSignature
	}

	amount := decimal.Zero
	if rawAmount := params.Get("vnp_Amount"); rawAmount != "" {
		parsed, err := decimal.NewFromString(rawAmount)
		if err == nil {
			amount = parsed.Div(decimal.NewFromInt(100))
		}
	}

	responseCode := params.Get("vnp_ResponseCode")
	outcome := OutcomeFailed
	if responseCode == "00" {
		outcome = OutcomeSuccess
	}

	raw := make(map[string]any, len(params))
	for key := range params {
		raw[key] = params.Get(key)
	}

	return &Result{
		TransactionID:        params.Get("vnp_TxnRef"),
		Outcome:              outcome,
		GatewayTransactionID: params.Get("vnp_TransactionNo"),
		ResponseCode:         responseCode,
		Amount:               amount,
		Raw:                  raw,
		Source:               SourceWebhook,
		FailureReason:        failureReason(outcome, "vnpay response code "+responseCode),
	}, nil
}

func (v *VNPay) QueryStatus(ctx context.Context, transactionID string, createdAt time.Time) (*Result, error) {
	requestID := transactionID + "-" + v.now().UTC().Format("150405")
	createDate := createdAt.Format("20060102150405")

	// querydr checksum: fields joined by | in documented order
	data := strings.Join([]string{
		requestID, "2.1.0", "querydr", v.cfg.TmnCode, transactionID,
		createDate, v.now().Format("20060102150405"), "127.0.0.1", "query order status",
	}, "|")
	mac := hmacSHA512(v.cfg.HashSecret, data)

	payload := map[string]any{
		"vnp_RequestId":       requestID,
		"vnp_Version":         "2.1.0",
		"vnp_Command":         "querydr",
		"vnp_TmnCode":         v.cfg.TmnCode,
		"vnp_TxnRef":          transactionID,
		"vnp_OrderInfo":       "query order status",
		"vnp_TransactionDate": createDate,
		"vnp_CreateDate":      v.now().Format("20060102150405"),
		"vnp_IpAddr":          "127.0.0.1",
		"vnp_SecureHash":      mac,
	}

	var resp struct {
		ResponseCode      string `json:"vnp_ResponseCode"`
		TransactionNo     string `json:"vnp_TransactionNo"`
		TransactionStatus string `json:"vnp_TransactionStatus"`
		Amount            string `json:"vnp_Amount"`
		Message           string `json:"vnp_Message"`
	}
	if err := postJSON(ctx, v.client, v.cfg.APIURL, payload, &resp); err != nil {
		return nil, err
	}

	outcome := OutcomePending
	switch resp.TransactionStatus {
	case "00":
		outcome = OutcomeSuccess
	case "01", "":
		outcome = OutcomePending
	default:
		outcome = OutcomeFailed
	}

	amount := decimal.Zero
	if resp.Amount != "" {
		if parsed, err := decimal.NewFromString(resp.Amount); err == nil {
			amount = parsed.Div(decimal.NewFromInt(100))
		}
	}

	return &Result{
		TransactionID:        transactionID,
		Outcome:              outcome,
		GatewayTransactionID: resp.TransactionNo,
		ResponseCode:         resp.TransactionStatus,
		Amount:               amount,
		Raw: map[string]any{
			"vnp_ResponseCode":      resp.ResponseCode,
			"vnp_TransactionStatus": resp.TransactionStatus,
			"vnp_TransactionNo":     resp.TransactionNo,
			"vnp_Message":           resp.Message,
		},
		Source:        SourceReconciliation,
		FailureReason: failureReason(outcome, "vnpay transaction status "+resp.TransactionStatus),
	}, nil
}

// sign computes the HMAC-SHA512 checksum over the sorted query string.
func (v *VNPay) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		if value := params.Get(key); value != "" {
			pairs = append(pairs, key+"="+url.QueryEscape(value))
		}
	}
	return hmacSHA512(v.cfg.HashSecret, strings.Join(pairs, "&"))
}

func hmacSHA512(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func failureReason(outcome Outcome, reason string) string {
	if outcome != OutcomeFailed {
		return ""
	}
	return reason
}
