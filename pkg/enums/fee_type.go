package enums

// FeeType describes how a payment method charges its processing fee.
type FeeType string

const (
	FeeTypeNone       FeeType = "none"
	FeeTypeFixed      FeeType = "fixed"
	FeeTypePercentage FeeType = "percentage"
	FeeTypeBoth       FeeType = "both"
)

// String implements fmt.Stringer.
func (f FeeType) String() string {
	return string(f)
}
