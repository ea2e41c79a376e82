package ckeylockclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/oblivisheee/ckeylock/internal/wire"
)

func marshalRequest(wrapper wire.RequestWrapper) ([]byte, error) {
	return json.Marshal(wrapper)
}

// frame is a decoded server reply, either a successful Response or an
// ErrorResponse.
type frame struct {
	isError bool
	resp    wire.Response
	errResp wire.ErrorResponse
}

// parseFrame decodes one server text frame. The two envelope shapes are
// distinguished by the presence of the "data" field, per spec.md's wire
// contract — not by which struct happens to unmarshal without error.
// wire.Response.Data is value-typed and encoding/json silently leaves
// missing fields at their zero value and ignores fields a struct doesn't
// declare, so trying Response then falling back to ErrorResponse (or vice
// versa) would misdecode whichever shape was tried first: an ErrorResponse
// payload unmarshals into Response with Data left zero-valued instead of
// failing, and a Response payload unmarshals into ErrorResponse with the
// "data" field silently dropped.
func parseFrame(data []byte) (frame, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return frame{}, fmt.Errorf("ckeylockclient: decode frame: %w", err)
	}

	if _, hasData := tagged["data"]; hasData {
		var resp wire.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return frame{}, fmt.Errorf("ckeylockclient: decode response: %w", err)
		}
		return frame{resp: resp}, nil
	}

	var errResp wire.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return frame{}, fmt.Errorf("ckeylockclient: decode error response: %w", err)
	}
	return frame{isError: true, errResp: errResp}, nil
}

// matchesID reports whether this frame carries the correlation ID wantID.
func (f frame) matchesID(wantID wire.Bytes) bool {
	if f.isError {
		return bytes.Equal(f.errResp.ReqID, wantID)
	}
	return bytes.Equal(f.resp.ReqID, wantID)
}
