package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// DomainMutation separates mutation ids from any other hash in the system.
// The version suffix allows the payload shape to change later.
const DomainMutation = "boardsync/mutation/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MutationID computes the content-addressed id of a mutation over its
// target, field and value. Rule, rationale and sequence are excluded so the
// same write planned by two passes carries the same id.
func MutationID(m Mutation) (string, error) {
	logins := slices.Clone(m.Logins)
	slices.Sort(logins)

	obj := IRObject{
		"content_id": IRString(m.ContentID),
		"field":      IRString(m.Field),
		"value":      OptionalString(m.Value),
		"logins":     Strings(logins),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MutationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}

// CanonicalMutation renders the stable parts of a mutation as an IRObject.
// Used for golden plan files.
func CanonicalMutation(m Mutation) IRObject {
	return IRObject{
		"id":        IRString(m.ID),
		"item":      IRString(m.Item.String()),
		"field":     IRString(m.Field),
		"value":     OptionalString(m.Value),
		"logins":    Strings(m.Logins),
		"rule":      IRString(m.Rule),
		"section":   IRString(m.Section),
		"rationale": IRString(m.Rationale),
		"reason":    IRString(m.Reason),
	}
}
