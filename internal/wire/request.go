// Package wire implements the CKeyLock request/response envelopes: the
// externally-tagged JSON encoding carried in WebSocket text frames, and the
// correlation-ID wrapper clients use to match replies to in-flight requests.
//
// The tagging convention mirrors the original Rust implementation's
// serde_json derive for its Request/ResponseData enums: a variant with
// fields serializes as a single-key object (`{"Set":{"key":...}}`), a
// variant with no fields serializes as a bare string (`"List"`). Matching
// this byte-for-byte means an unmodified Rust client still speaks the wire
// protocol against this server.
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind tags which Request variant a decoded envelope carries.
type Kind string

const (
	KindSet      Kind = "Set"
	KindGet      Kind = "Get"
	KindDelete   Kind = "Delete"
	KindList     Kind = "List"
	KindExists   Kind = "Exists"
	KindCount    Kind = "Count"
	KindBatchGet Kind = "BatchGet"
	KindClear    Kind = "Clear"
)

// Request is one CKeyLock operation. Only the fields relevant to Kind are
// populated; it is the Go analogue of the Rust Request enum.
type Request struct {
	Kind  Kind
	Key   Bytes
	Value Bytes
	Keys  []Bytes
}

var unitRequestKinds = map[Kind]bool{
	KindList:  true,
	KindCount: true,
	KindClear: true,
}

// MarshalJSON encodes r using external tagging: unit variants as a bare
// string, field-carrying variants as a single-key object.
func (r Request) MarshalJSON() ([]byte, error) {
	if unitRequestKinds[r.Kind] {
		return json.Marshal(string(r.Kind))
	}

	var payload any
	switch r.Kind {
	case KindSet:
		payload = struct {
			Key   Bytes `json:"key"`
			Value Bytes `json:"value"`
		}{r.Key, r.Value}
	case KindGet:
		payload = struct {
			Key Bytes `json:"key"`
		}{r.Key}
	case KindDelete:
		payload = struct {
			Key Bytes `json:"key"`
		}{r.Key}
	case KindExists:
		payload = struct {
			Key Bytes `json:"key"`
		}{r.Key}
	case KindBatchGet:
		payload = struct {
			Keys []Bytes `json:"keys"`
		}{r.Keys}
	default:
		return nil, fmt.Errorf("wire: unknown request kind %q", r.Kind)
	}

	return json.Marshal(map[string]any{string(r.Kind): payload})
}

// UnmarshalJSON decodes either a bare-string unit variant or a single-key
// tagged object into r.
func (r *Request) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		kind := Kind(asString)
		if !unitRequestKinds[kind] {
			return fmt.Errorf("wire: %q is not a unit request variant", asString)
		}
		r.Kind = kind
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: decode request envelope: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: request object must carry exactly one variant tag, got %d", len(tagged))
	}

	for tag, raw := range tagged {
		kind := Kind(tag)
		switch kind {
		case KindSet:
			var body struct {
				Key   Bytes `json:"key"`
				Value Bytes `json:"value"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("wire: decode Set body: %w", err)
			}
			r.Kind, r.Key, r.Value = KindSet, body.Key, body.Value
		case KindGet:
			var body struct {
				Key Bytes `json:"key"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("wire: decode Get body: %w", err)
			}
			r.Kind, r.Key = KindGet, body.Key
		case KindDelete:
			var body struct {
				Key Bytes `json:"key"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("wire: decode Delete body: %w", err)
			}
			r.Kind, r.Key = KindDelete, body.Key
		case KindExists:
			var body struct {
				Key Bytes `json:"key"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("wire: decode Exists body: %w", err)
			}
			r.Kind, r.Key = KindExists, body.Key
		case KindBatchGet:
			var body struct {
				Keys []Bytes `json:"keys"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("wire: decode BatchGet body: %w", err)
			}
			r.Kind, r.Keys = KindBatchGet, body.Keys
		default:
			return fmt.Errorf("wire: unknown request variant tag %q", tag)
		}
		return nil
	}
	return nil // unreachable: len(tagged) == 1
}

// RequestWrapper pairs a Request with a client-chosen correlation ID.
type RequestWrapper struct {
	Req Request `json:"req"`
	ID  Bytes   `json:"id"`
}
