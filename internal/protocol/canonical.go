package protocol

import (
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/halcyon-sh/warden/internal/fault"
)

// Canonical returns the RFC 8785 (JCS) canonical JSON encoding of v.
// The hash chain hashes canonical bytes, so any two implementations must
// serialize identically to produce matching hashes. A failure here is a
// structural error, never silently dropped.
func Canonical(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fault.New(fault.SerializationError, "marshal: %v", err)
	}
	out, err := jcs.Transform(data)
	if err != nil {
		return nil, fault.New(fault.SerializationError, "canonicalize: %v", err)
	}
	return out, nil
}
