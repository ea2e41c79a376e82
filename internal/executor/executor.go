// Package executor serializes every mutation and read against a
// storage.Storage behind a single goroutine, reached through a bounded
// mailbox channel.
//
// The original Rust implementation additionally wrapped its map in a
// DashMap even though only one goroutine-equivalent ever touched it through
// this same actor; that redundant synchronisation is deliberately not
// carried over here — Storage itself takes no locks, and Executor is its
// only caller.
package executor

import (
	"context"
	"fmt"

	"github.com/oblivisheee/ckeylock/internal/log"
	"github.com/oblivisheee/ckeylock/internal/storage"
	"github.com/oblivisheee/ckeylock/internal/wire"
)

// mailboxCapacity bounds the number of commands an Executor will buffer
// before Execute blocks the caller.
const mailboxCapacity = 32

// command is one unit of work handed to the storage goroutine. Only the
// request fields that kind uses are meaningful.
type command struct {
	kind  wire.Kind
	key   []byte
	value []byte
	keys  [][]byte
	reply chan result
}

// result carries back whatever the storage call produced, tagged loosely
// enough to serve every Kind without a dozen reply-channel types.
type result struct {
	key    []byte
	keyOK  bool
	values [][]byte
	valsOK []bool
	exists bool
	count  int
	err    error
}

// Executor owns a storage.Storage exclusively and serializes access to it
// through a single consumer goroutine, fed by a bounded channel.
type Executor struct {
	mailbox chan command
	logger  *log.Logger
}

// New starts the executor goroutine over store and returns a handle to it.
// The goroutine runs until ctx is cancelled, after which it drains no
// further commands; an Execute whose own context is cancelled returns that
// context's error.
func New(ctx context.Context, store *storage.Storage, logger *log.Logger) *Executor {
	e := &Executor{
		mailbox: make(chan command, mailboxCapacity),
		logger:  logger,
	}
	go e.run(ctx, store)
	return e
}

// run drains the mailbox until ctx is cancelled. It never closes the
// mailbox: callers already racing a cancelled context fail on the ctx.Done
// branch of submit instead of on a closed-channel send.
func (e *Executor) run(ctx context.Context, store *storage.Storage) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.mailbox:
			r := e.apply(store, cmd)
			if r.err != nil && e.logger != nil {
				e.logger.WithError(r.err).Error("storage operation failed")
			}
			cmd.reply <- r
		}
	}
}

func (e *Executor) apply(store *storage.Storage, cmd command) result {
	switch cmd.kind {
	case wire.KindSet:
		key, err := store.Set(cmd.key, cmd.value)
		return result{key: key, err: err}
	case wire.KindGet:
		value, ok := store.Get(cmd.key)
		return result{values: [][]byte{value}, valsOK: []bool{ok}}
	case wire.KindDelete:
		key, existed, err := store.Delete(cmd.key)
		return result{key: key, keyOK: existed, err: err}
	case wire.KindList:
		return result{values: store.List()}
	case wire.KindExists:
		return result{exists: store.Exists(cmd.key)}
	case wire.KindCount:
		return result{count: store.Count()}
	case wire.KindBatchGet:
		values := make([][]byte, len(cmd.keys))
		oks := make([]bool, len(cmd.keys))
		for i, k := range cmd.keys {
			values[i], oks[i] = store.Get(k)
		}
		return result{values: values, valsOK: oks}
	case wire.KindClear:
		return result{err: store.Clear()}
	default:
		return result{err: fmt.Errorf("executor: unknown request kind %q", cmd.kind)}
	}
}

// submit enqueues cmd and waits for its reply, honoring ctx cancellation on
// both the send and the receive side.
func (e *Executor) submit(ctx context.Context, cmd command) (result, error) {
	select {
	case e.mailbox <- cmd:
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Execute runs one RequestWrapper to completion and builds its Response,
// using the same success messages as the original implementation.
func (e *Executor) Execute(ctx context.Context, wrapper wire.RequestWrapper) (*wire.Response, error) {
	req := wrapper.Req
	cmd := command{
		kind:  req.Kind,
		key:   req.Key,
		value: req.Value,
		keys:  bytesToByteSlices(req.Keys),
		reply: make(chan result, 1),
	}

	r, err := e.submit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}

	switch req.Kind {
	case wire.KindSet:
		return &wire.Response{
			Message: "Stored successfully.",
			Data:    wire.SetResponseData(r.key),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindGet:
		return &wire.Response{
			Message: "Retrieved successfully.",
			Data:    wire.GetResponseData(optional(r.values[0], r.valsOK[0])),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindDelete:
		return &wire.Response{
			Message: "Deleted successfully.",
			Data:    wire.DeleteResponseData(optional(r.key, r.keyOK)),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindList:
		return &wire.Response{
			Message: "Listed successfully.",
			Data:    wire.ListResponseData(byteSlicesToBytes(r.values)),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindExists:
		return &wire.Response{
			Message: "Existence checked successfully.",
			Data:    wire.ExistsResponseData(r.exists),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindCount:
		return &wire.Response{
			Message: "Counted successfully.",
			Data:    wire.CountResponseData(r.count),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindBatchGet:
		values := make([]wire.OptionalBytes, len(r.values))
		for i := range r.values {
			values[i] = optional(r.values[i], r.valsOK[i])
		}
		return &wire.Response{
			Message: "Retrieved successfully.",
			Data:    wire.BatchGetResponseData(values),
			ReqID:   wrapper.ID,
		}, nil
	case wire.KindClear:
		return &wire.Response{
			Message: "Cleared successfully.",
			Data:    wire.ClearResponseData(),
			ReqID:   wrapper.ID,
		}, nil
	default:
		return nil, fmt.Errorf("executor: unknown request kind %q", req.Kind)
	}
}

func optional(b []byte, ok bool) wire.OptionalBytes {
	if !ok {
		return wire.None()
	}
	return wire.Some(b)
}

func bytesToByteSlices(keys []wire.Bytes) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func byteSlicesToBytes(keys [][]byte) []wire.Bytes {
	out := make([]wire.Bytes, len(keys))
	for i, k := range keys {
		out[i] = wire.Bytes(k)
	}
	return out
}
