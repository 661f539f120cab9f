// Package dedup collapses repeated reports of the same underlying condition
// into one logical alert with an occurrence counter.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/opsgrid/alert-core/internal/alert"
)

// Fingerprint computes the stable identity of an underlying condition.
//
// The hash deliberately excludes the source value and timestamps: a sensor
// flapping through different values keeps reporting into one logical alert
// while the condition persists. A different alert type on the same device is
// a distinct condition and gets a distinct fingerprint.
func Fingerprint(connectorType, vendor, deviceIP, alertType string, sourceField alert.SourceField) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s", connectorType, vendor, deviceIP, alertType, sourceField)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
