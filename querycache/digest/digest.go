// Package digest provides the stable 32-bit digests used throughout the
// query cache: query keys, entity keys, and schema shape keys.
//
// The hashing itself is pkg/crypt.Hash (SHA-256 over a canonical byte
// string); digest only adds the fold-to-uint32 step the cache's KV key scheme
// requires, decoding the hex digest crypt.Hash returns back to bytes.
package digest

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shashiranjanraj/qcache/pkg/crypt"
)

// Of returns a stable 32-bit digest of s.
func Of(s string) uint32 {
	sum, err := hex.DecodeString(crypt.Hash(s))
	if err != nil || len(sum) < 4 {
		// crypt.Hash always returns a 64-char hex SHA-256 digest; this path
		// is unreachable in practice and exists only so Of stays panic-free.
		return 0
	}
	return binary.BigEndian.Uint32(sum[:4])
}

// OfParts joins parts with a separator byte not expected to appear in any
// part (0x1F, ASCII unit separator) before digesting, so ("ab","c") and
// ("a","bc") never collide.
func OfParts(parts ...string) uint32 {
	out := make([]byte, 0, 64)
	for i, p := range parts {
		if i > 0 {
			out = append(out, 0x1F)
		}
		out = append(out, p...)
	}
	return Of(string(out))
}

// CanonicalJSON normalizes an arbitrary arguments value for fingerprinting:
// an empty map/struct becomes "no args", and object keys are sorted
// lexicographically so caller field order never affects the digest.
func CanonicalJSON(v any) (string, error) {
	if v == nil {
		return "no args", nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}

	if m, ok := generic.(map[string]any); ok && len(m) == 0 {
		return "no args", nil
	}

	canon, err := canonicalize(generic)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// canonicalize rewrites maps as sorted key/value slices so json.Marshal's
// (already-sorted) map key output is reproduced explicitly and defensively,
// and recurses into nested maps/slices.
func canonicalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(t))
		for _, k := range keys {
			child, err := canonicalize(t[k])
			if err != nil {
				return nil, err
			}
			out[k] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			child, err := canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return v, nil
	}
}
