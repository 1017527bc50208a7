// Package memory implements the cloud-memory core: export normalization,
// structural diffing, plan limits, and version retention.
package memory

import (
	"crypto/md5"
	"encoding/hex"
)

// Checksum returns the MD5 hex digest of a raw export. It is used as a cheap
// change/conflict fingerprint, not for integrity against tampering.
func Checksum(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
