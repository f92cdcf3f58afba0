package query

import "github.com/shashiranjanraj/qcache/querycache/digest"

// Fingerprint derives the Query Key for (defID, args) and the canonical
// argument string it was computed from, for logging/diagnostics.
func Fingerprint(defID string, args map[string]any) (uint32, string, error) {
	canon, err := digest.CanonicalJSON(args)
	if err != nil {
		return 0, "", err
	}
	return digest.OfParts(defID, canon), canon, nil
}
