package gateway

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/owlscommerce/owls-backend/pkg/enums"
)

// ErrInvalidSignature is returned when a callback fails checksum
// verification. Controllers translate it into the gateway-specific nack.
var ErrInvalidSignature = errors.New("gateway: invalid signature")

// Outcome is the normalized verdict extracted from a gateway response.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// Result sources, recorded for metrics and the idempotent no-op path.
const (
	SourceWebhook        = "webhook"
	SourceReconciliation = "reconciliation"
	SourceExpiry         = "expiry"
)

// CreateRequest carries what an adapter needs to open a payment session.
type CreateRequest struct {
	TransactionID string
	OrderNumber   string
	Amount        decimal.Decimal
	Description   string
	ClientIP      string
	CreatedAt     time.Time
}

// CreateResponse is the redirect handle returned to the client.
type CreateResponse struct {
	PayURL string
	Raw    map[string]any
}

// Callback wraps the raw inbound webhook so each adapter can pick the
// representation its gateway uses (query params for VNPay, JSON for the rest).
type Callback struct {
	Query url.Values
	Body  []byte
}

// Result is the normalized payment verdict every caller converges on.
type Result struct {
	TransactionID        string
	Outcome              Outcome
	GatewayTransactionID string
	ResponseCode         string
	Amount               decimal.Decimal
	Raw                  map[string]any
	Source               string
	FailureReason        string
}

// Adapter is one gateway integration.
type Adapter interface {
	Code() enums.GatewayCode
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	VerifyCallback(cb Callback) (*Result, error)
	QueryStatus(ctx context.Context, transactionID string, createdAt time.Time) (*Result, error)
}

// Registry resolves adapters by payment method code.
type Registry struct {
	byCode map[enums.GatewayCode]Adapter
}

// NewRegistry indexes the provided adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	byCode := make(map[enums.GatewayCode]Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter != nil {
			byCode[adapter.Code()] = adapter
		}
	}
	return &Registry{byCode: byCode}
}

// ForCode returns the adapter registered for the code.
func (r *Registry) ForCode(code enums.GatewayCode) (Adapter, bool) {
	adapter, ok := r.byCode[code]
	return adapter, ok
}
