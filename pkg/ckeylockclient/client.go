// Package ckeylockclient is a thin WebSocket client for CKeyLock: one
// outbound connection, a correlation-ID-matched request/response cycle per
// call, and one convenience method per store operation.
//
// Grounded on the original Rust api crate (api/src/lib.rs): the same
// connect-once-then-call shape, the same reqid-matching receive loop, and
// the same method surface (Set/Get/Delete/List/Exists/Count/Clear), plus
// BatchGet which the distilled spec adds to the wire protocol.
package ckeylockclient

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oblivisheee/ckeylock/internal/wire"
)

// Client dials one WebSocket connection and sends every call to Set, Get,
// and the rest over it, matching replies by correlation ID. Calls are not
// multiplexed: each call reads frames until its own reply arrives and
// discards any other reply, so only one call may be in flight at a time.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to a ckeylockd instance listening at bind ("host:port").
// If password is non-empty, it is sent as the Authorization header.
func Dial(bind string, password string) (*Client, error) {
	url := "ws://" + bind
	header := make(map[string][]string)
	if password != "" {
		header["Authorization"] = []string{password}
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("ckeylockclient: dial %s: %w", bind, err)
	}
	return &Client{conn: conn}, nil
}

// Close terminates the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// newCorrelationID generates a fresh client-chosen request ID.
func newCorrelationID() wire.Bytes {
	id := uuid.New()
	return wire.Bytes(id[:])
}

// call sends req under a fresh correlation ID and blocks until the matching
// reply arrives. Frames whose reqid does not match are discarded, since
// this client only ever has one request in flight per connection.
func (c *Client) call(req wire.Request) (wire.ResponseData, error) {
	id := newCorrelationID()
	wrapper := wire.RequestWrapper{Req: req, ID: id}

	payload, err := marshalRequest(wrapper)
	if err != nil {
		return wire.ResponseData{}, err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return wire.ResponseData{}, fmt.Errorf("ckeylockclient: send request: %w", err)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return wire.ResponseData{}, fmt.Errorf("ckeylockclient: read response: %w", err)
		}

		f, err := parseFrame(data)
		if err != nil {
			// Not a frame this client understands (e.g. a bare protocol-error
			// string with no reqid envelope); keep waiting for our reply.
			continue
		}
		if !f.matchesID(id) {
			continue
		}
		if f.isError {
			return wire.ResponseData{}, fmt.Errorf("ckeylockclient: server error: %s", f.errResp.Message)
		}
		return f.resp.Data, nil
	}
}

// Set stores value under key and returns the stored key.
func (c *Client) Set(key, value []byte) ([]byte, error) {
	data, err := c.call(wire.Request{Kind: wire.KindSet, Key: key, Value: value})
	if err != nil {
		return nil, err
	}
	return data.Key, nil
}

// Get retrieves the value for key, or (nil, false) if it is absent.
func (c *Client) Get(key []byte) ([]byte, bool, error) {
	data, err := c.call(wire.Request{Kind: wire.KindGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	return data.Value.Bytes, data.Value.Valid, nil
}

// Delete removes key, returning (nil, false) if it was not present.
func (c *Client) Delete(key []byte) ([]byte, bool, error) {
	data, err := c.call(wire.Request{Kind: wire.KindDelete, Key: key})
	if err != nil {
		return nil, false, err
	}
	return data.DelKey.Bytes, data.DelKey.Valid, nil
}

// List returns every key currently in the store.
func (c *Client) List() ([][]byte, error) {
	data, err := c.call(wire.Request{Kind: wire.KindList})
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, len(data.Keys))
	for i, k := range data.Keys {
		keys[i] = k
	}
	return keys, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(key []byte) (bool, error) {
	data, err := c.call(wire.Request{Kind: wire.KindExists, Key: key})
	if err != nil {
		return false, err
	}
	return data.Exists, nil
}

// Count returns the number of keys currently in the store.
func (c *Client) Count() (int, error) {
	data, err := c.call(wire.Request{Kind: wire.KindCount})
	if err != nil {
		return 0, err
	}
	return data.Count, nil
}

// Clear removes every key from the store.
func (c *Client) Clear() error {
	_, err := c.call(wire.Request{Kind: wire.KindClear})
	return err
}

// BatchGet retrieves several keys in one round trip, preserving order.
// Each result is (nil, false) for a key that was not present.
func (c *Client) BatchGet(keys [][]byte) ([][]byte, []bool, error) {
	wireKeys := make([]wire.Bytes, len(keys))
	for i, k := range keys {
		wireKeys[i] = k
	}
	data, err := c.call(wire.Request{Kind: wire.KindBatchGet, Keys: wireKeys})
	if err != nil {
		return nil, nil, err
	}
	values := make([][]byte, len(data.Values))
	oks := make([]bool, len(data.Values))
	for i, v := range data.Values {
		values[i], oks[i] = v.Bytes, v.Valid
	}
	return values, oks, nil
}
