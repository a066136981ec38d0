package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// FingerprintPrefix marks tokens derived on the server rather than sent by the client.
const FingerprintPrefix = "fp_"

// FingerprintToken derives a visitor token for events that arrive without one.
// It rotates daily (UTC) so derived identities never outlive a day.
func FingerprintToken(ipAddress, userAgent string, now time.Time) string {
	day := now.UTC().Format("2006-01-02")
	data := fmt.Sprintf("%s.%s.%s", day, ipAddress, userAgent)

	hash := sha256.Sum256([]byte(data))
	return FingerprintPrefix + hex.EncodeToString(hash[:16])
}
