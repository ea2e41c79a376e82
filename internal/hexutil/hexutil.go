// Package hexutil provides the hex-encoding helpers used to render opaque
// keys in log lines without dumping raw binary.
package hexutil

import "encoding/hex"

// Short renders b as a lowercase hex string, truncated to maxBytes bytes
// (with a trailing ellipsis marker) so long values stay log-friendly.
func Short(b []byte, maxBytes int) string {
	if maxBytes <= 0 || len(b) <= maxBytes {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:maxBytes]) + "..."
}

// Encode renders b as a lowercase hex string in full.
func Encode(b []byte) string {
	return hex.EncodeToString(b)
}
