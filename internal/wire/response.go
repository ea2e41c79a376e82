package wire

import (
	"encoding/json"
	"fmt"
)

// DataKind tags which ResponseData variant a Response carries.
type DataKind string

const (
	DataKindSet      DataKind = "SetResponse"
	DataKindGet      DataKind = "GetResponse"
	DataKindDelete   DataKind = "DeleteResponse"
	DataKindList     DataKind = "ListResponse"
	DataKindExists   DataKind = "ExistsResponse"
	DataKindCount    DataKind = "CountResponse"
	DataKindBatchGet DataKind = "BatchGetResponse"
	DataKindClear    DataKind = "ClearResponse"
)

// OptionalBytes distinguishes an absent value (Rust's `None`, JSON `null`)
// from an empty-but-present one (Rust's `Some(vec![])`, JSON `[]`).
type OptionalBytes struct {
	Bytes Bytes
	Valid bool
}

// Some wraps b as a present value.
func Some(b []byte) OptionalBytes { return OptionalBytes{Bytes: Bytes(b), Valid: true} }

// None is the absent value.
func None() OptionalBytes { return OptionalBytes{} }

func (o OptionalBytes) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return o.Bytes.MarshalJSON()
}

func (o *OptionalBytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalBytes{}
		return nil
	}
	var b Bytes
	if err := b.UnmarshalJSON(data); err != nil {
		return err
	}
	*o = OptionalBytes{Bytes: b, Valid: true}
	return nil
}

// ResponseData is the tagged payload carried by a successful Response. Only
// the fields relevant to Kind are populated.
type ResponseData struct {
	Kind DataKind

	Key    Bytes         // SetResponse
	Value  OptionalBytes // GetResponse
	DelKey OptionalBytes // DeleteResponse
	Keys   []Bytes       // ListResponse
	Exists bool          // ExistsResponse
	Count  int           // CountResponse
	Values []OptionalBytes // BatchGetResponse
}

// SetResponseData builds the ResponseData for a successful Set.
func SetResponseData(key []byte) ResponseData {
	return ResponseData{Kind: DataKindSet, Key: key}
}

// GetResponseData builds the ResponseData for a Get, present or absent.
func GetResponseData(value OptionalBytes) ResponseData {
	return ResponseData{Kind: DataKindGet, Value: value}
}

// DeleteResponseData builds the ResponseData for a Delete, present or absent.
func DeleteResponseData(key OptionalBytes) ResponseData {
	return ResponseData{Kind: DataKindDelete, DelKey: key}
}

// ListResponseData builds the ResponseData for a List.
func ListResponseData(keys []Bytes) ResponseData {
	return ResponseData{Kind: DataKindList, Keys: keys}
}

// ExistsResponseData builds the ResponseData for an Exists check.
func ExistsResponseData(exists bool) ResponseData {
	return ResponseData{Kind: DataKindExists, Exists: exists}
}

// CountResponseData builds the ResponseData for a Count.
func CountResponseData(count int) ResponseData {
	return ResponseData{Kind: DataKindCount, Count: count}
}

// BatchGetResponseData builds the ResponseData for a BatchGet.
func BatchGetResponseData(values []OptionalBytes) ResponseData {
	return ResponseData{Kind: DataKindBatchGet, Values: values}
}

// ClearResponseData builds the unit ResponseData for a successful Clear.
func ClearResponseData() ResponseData {
	return ResponseData{Kind: DataKindClear}
}

var unitDataKinds = map[DataKind]bool{DataKindClear: true}

func (d ResponseData) MarshalJSON() ([]byte, error) {
	if unitDataKinds[d.Kind] {
		return json.Marshal(string(d.Kind))
	}

	var payload any
	switch d.Kind {
	case DataKindSet:
		payload = struct {
			Key Bytes `json:"key"`
		}{d.Key}
	case DataKindGet:
		payload = struct {
			Value OptionalBytes `json:"value"`
		}{d.Value}
	case DataKindDelete:
		payload = struct {
			Key OptionalBytes `json:"key"`
		}{d.DelKey}
	case DataKindList:
		payload = struct {
			Keys []Bytes `json:"keys"`
		}{d.Keys}
	case DataKindExists:
		payload = struct {
			Exists bool `json:"exists"`
		}{d.Exists}
	case DataKindCount:
		payload = struct {
			Count int `json:"count"`
		}{d.Count}
	case DataKindBatchGet:
		payload = struct {
			Values []OptionalBytes `json:"values"`
		}{d.Values}
	default:
		return nil, fmt.Errorf("wire: unknown response data kind %q", d.Kind)
	}

	return json.Marshal(map[string]any{string(d.Kind): payload})
}

func (d *ResponseData) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		kind := DataKind(asString)
		if !unitDataKinds[kind] {
			return fmt.Errorf("wire: %q is not a unit response data variant", asString)
		}
		d.Kind = kind
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: decode response data: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: response data object must carry exactly one variant tag, got %d", len(tagged))
	}

	for tag, raw := range tagged {
		kind := DataKind(tag)
		switch kind {
		case DataKindSet:
			var body struct {
				Key Bytes `json:"key"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.Key = DataKindSet, body.Key
		case DataKindGet:
			var body struct {
				Value OptionalBytes `json:"value"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.Value = DataKindGet, body.Value
		case DataKindDelete:
			var body struct {
				Key OptionalBytes `json:"key"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.DelKey = DataKindDelete, body.Key
		case DataKindList:
			var body struct {
				Keys []Bytes `json:"keys"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.Keys = DataKindList, body.Keys
		case DataKindExists:
			var body struct {
				Exists bool `json:"exists"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.Exists = DataKindExists, body.Exists
		case DataKindCount:
			var body struct {
				Count int `json:"count"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.Count = DataKindCount, body.Count
		case DataKindBatchGet:
			var body struct {
				Values []OptionalBytes `json:"values"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			d.Kind, d.Values = DataKindBatchGet, body.Values
		default:
			return fmt.Errorf("wire: unknown response data tag %q", tag)
		}
		return nil
	}
	return nil // unreachable: len(tagged) == 1
}

// Response is the success envelope sent back to a client: a human-readable
// message, the operation's result payload, and the request's correlation ID.
type Response struct {
	Message string       `json:"message"`
	Data    ResponseData `json:"data"`
	ReqID   Bytes        `json:"reqid"`
}

// ErrorResponse is the failure envelope: no data field, same correlation ID.
type ErrorResponse struct {
	Message string `json:"message"`
	ReqID   Bytes  `json:"reqid"`
}
