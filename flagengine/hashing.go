package flagengine

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

const (
	// rolloutSalt is intentionally empty; variantSalt must differ from it so
	// that rollout gating and variant assignment draw from independent hash
	// spaces. Both values are fixed by the server-side evaluator.
	rolloutSalt = ""
	variantSalt = "variant"
)

// longScale is exactly 15 hex F's (2^60-1). The server-side evaluator divides
// by the same constant, so it must not be widened to 16 digits.
const longScale = float64(0xFFFFFFFFFFFFFFF)

// HashBucket maps (flagKey, distinctID, salt) to a stable value in [0, 1].
//
// The value is derived from the SHA-1 digest of "{flagKey}.{distinctID}{salt}":
// the first 15 hex digits of the digest are parsed as an integer and divided
// by longScale. The same subject therefore lands in the same bucket on every
// call, in every process, and in every SDK that implements this scheme.
func HashBucket(flagKey, distinctID, salt string) float64 {
	sum := sha1.Sum([]byte(flagKey + "." + distinctID + salt))
	digest := hex.EncodeToString(sum[:])
	value, err := strconv.ParseUint(digest[:15], 16, 64)
	if err != nil {
		return 0
	}
	return float64(value) / longScale
}
