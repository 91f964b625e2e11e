package canonicalization

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// SyntheticPersonIDPattern matches person natural keys produced by the synthetic export generator:
// either a bare integer ("1", "42") or an 8-character lowercase hex id ("3f9a0c1e").
//
// The same expression is embedded in the cv_search_profile_test_mv / cv_search_profile_mv
// definitions in migrations/; both must change together.
const SyntheticPersonIDPattern = `^([0-9]+|[0-9a-f]{8})$`

var syntheticPersonID = regexp.MustCompile(SyntheticPersonIDPattern)

// IsSyntheticPersonID reports whether a person natural key belongs to generated test data.
//
// Examples:
//   - IsSyntheticPersonID("1") → true
//   - IsSyntheticPersonID("3f9a0c1e") → true
//   - IsSyntheticPersonID("EMP-4821") → false
//   - IsSyntheticPersonID("3F9A0C1E") → false (generator emits lowercase only)
func IsSyntheticPersonID(externalPersonID string) bool {
	return syntheticPersonID.MatchString(NormalizeNaturalKey(externalPersonID))
}

// GeneratePlanChecksum returns a deterministic fingerprint of a serialized load plan.
//
// The checksum is recorded on every load run so that operators can spot a re-run of the
// exact same export (expected to be a no-op thanks to upsert idempotence).
//
// Returns: 64-character lowercase hex string (SHA256 output), or "" for an empty payload.
func GeneratePlanChecksum(payload []byte) string {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return ""
	}

	hash := sha256.Sum256(payload)

	return hex.EncodeToString(hash[:])
}
