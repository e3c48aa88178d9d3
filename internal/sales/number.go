package sales

import (
	"crypto/rand"
	"math/big"
	"time"
)

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewTransactionNumber formats TRX-YYYYMMDD-XXXXXX using the local date of at
// and six random characters.
func NewTransactionNumber(at time.Time) string {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			suffix[i] = numberAlphabet[at.UnixNano()%int64(len(numberAlphabet))]
			continue
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return "TRX-" + at.Format("20060102") + "-" + string(suffix)
}
