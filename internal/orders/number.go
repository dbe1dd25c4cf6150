package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber builds a human-readable unique order reference:
// prefix + yymmdd + 6 random alphanumerics, e.g. OWL250829A3F9K2.
// Randomness comes from crypto/rand; the unique index on order_number is
// the collision backstop.
func GenerateOrderNumber(prefix string, now time.Time) (string, error) {
	suffix, err := randomToken(numberAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	return prefix + now.UTC().Format("060102") + suffix, nil
}

func randomToken(alphabet string, length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
