package audit

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// IPHasher turns client IPs into stable, non-reversible identifiers so audit
// records can be correlated without storing raw addresses.
type IPHasher struct {
	key []byte
}

// NewIPHasher creates a hasher keyed with key. Keys longer than BLAKE2b's
// 64-byte limit are compressed first.
func NewIPHasher(key string) *IPHasher {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	return &IPHasher{key: k}
}

// Hash returns a hex digest of ip, or "" for an empty ip.
func (h *IPHasher) Hash(ip string) string {
	if ip == "" {
		return ""
	}
	mac, err := blake2b.New(16, h.key)
	if err != nil {
		// Only reachable with an oversized key, which NewIPHasher prevents.
		return ""
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
