package gateway

import (
	"context"
	"time"

	"github.com/owlscommerce/owls-backend/pkg/enums"
	"github.com/owlscommerce/owls-backend/pkg/errors"
)

// COD has no external processor. Payments stay pending until fulfilment
// marks them settled, so every gateway hook is a stub.
type COD struct{}

func NewCOD() *COD {
	return &COD{}
}

func (c *COD) Code() enums.GatewayCode {
	return enums.GatewayCOD
}

func (c *COD) CreatePayment(_ context.Context, _ CreateRequest) (*CreateResponse, error) {
	return &CreateResponse{}, nil
}

func (c *COD) VerifyCallback(_ Callback) (*Result, error) {
	return nil, errors.New(errors.CodeValidation, "cash on delivery has no payment callback")
}

func (c *COD) QueryStatus(_ context.Context, transactionID string, _ time.Time) (*Result, error) {
	return &Result{
		TransactionID: transactionID,
		Outcome:       OutcomePending,
		Source:        SourceReconciliation,
	}, nil
}
