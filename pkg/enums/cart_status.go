package enums

// CartStatus tracks whether a cart is still editable.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}
