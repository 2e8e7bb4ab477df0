package dedup

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the number of hex characters used in file names
const ShortLen = 8

// Fingerprint is the SHA-256 digest of an image's raw bytes
type Fingerprint [sha256.Size]byte

// Digest computes the fingerprint of data
func Digest(data []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(data))
}

// Hex returns the full lowercase hex encoding
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first ShortLen hex characters
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:ShortLen/2])
}

func (f Fingerprint) String() string {
	return f.Short()
}
