package payments

import (
	"crypto/rand"
	"fmt"
	"time"
)

const txnDigits = "0123456789"

// GenerateTransactionID builds the merchant-side reference sent to the
// gateway, e.g. TXN20250829120000483921. The timestamp keeps references
// sortable, the random tail avoids collisions within a second.
func GenerateTransactionID(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("transaction id entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = txnDigits[int(b)%len(txnDigits)]
	}
	return "TXN" + now.UTC().Format("20060102150405") + string(buf), nil
}
