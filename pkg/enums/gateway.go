package enums

import "fmt"

// GatewayCode identifies a payment gateway integration.
type GatewayCode string

const (
	GatewayVNPay   GatewayCode = "vnpay"
	GatewayMoMo    GatewayCode = "momo"
	GatewayZaloPay GatewayCode = "zalopay"
	GatewayCOD     GatewayCode = "cod"
)

var validGatewayCodes = []GatewayCode{
	GatewayVNPay,
	GatewayMoMo,
	GatewayZaloPay,
	GatewayCOD,
}

// String implements fmt.Stringer.
func (g GatewayCode) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayCode.
func (g GatewayCode) IsValid() bool {
	for _, candidate := range validGatewayCodes {
		if candidate == g {
			return true
		}
	}
	return false
}

// HasGateway reports whether the code talks to an external gateway. Cash on
// delivery settles offline, so it is excluded from webhook and reconciliation
// handling.
func (g GatewayCode) HasGateway() bool {
	return g != GatewayCOD && g.IsValid()
}

// ParseGatewayCode converts raw input into a GatewayCode.
func ParseGatewayCode(value string) (GatewayCode, error) {
	for _, candidate := range validGatewayCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway code %q", value)
}
