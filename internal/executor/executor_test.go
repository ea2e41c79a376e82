package executor

import (
	"context"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/oblivisheee/ckeylock/internal/cipher"
	"github.com/oblivisheee/ckeylock/internal/storage"
	"github.com/oblivisheee/ckeylock/internal/wire"
)

func newTestExecutor(t *testing.T) (*Executor, context.Context) {
	t.Helper()
	c, err := cipher.NewFromPassphrase("pw")
	if err != nil {
		t.Fatalf("NewFromPassphrase() error = %v", err)
	}
	store, err := storage.Open(filepath.Join(t.TempDir(), "ck.snap"), c, nil)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		store.Close()
	})

	return New(ctx, store, nil), ctx
}

func req(kind wire.Kind, id byte) wire.RequestWrapper {
	return wire.RequestWrapper{Req: wire.Request{Kind: kind}, ID: wire.Bytes{id}}
}

func TestExecuteSetGetDelete(t *testing.T) {
	e, ctx := newTestExecutor(t)

	setReq := wire.RequestWrapper{
		Req: wire.Request{Kind: wire.KindSet, Key: []byte("k"), Value: []byte("v")},
		ID:  wire.Bytes{1},
	}
	resp, err := e.Execute(ctx, setReq)
	if err != nil {
		t.Fatalf("Execute(Set) error = %v", err)
	}
	if resp.Message != "Stored successfully." || resp.Data.Kind != wire.DataKindSet {
		t.Fatalf("Execute(Set) = %+v", resp)
	}
	if string(resp.ReqID) != "\x01" {
		t.Errorf("Execute(Set) reqid = %v, want echoed correlation id", resp.ReqID)
	}

	getReq := wire.RequestWrapper{
		Req: wire.Request{Kind: wire.KindGet, Key: []byte("k")},
		ID:  wire.Bytes{2},
	}
	resp, err = e.Execute(ctx, getReq)
	if err != nil {
		t.Fatalf("Execute(Get) error = %v", err)
	}
	if !resp.Data.Value.Valid || string(resp.Data.Value.Bytes) != "v" {
		t.Fatalf("Execute(Get) = %+v", resp.Data)
	}

	delReq := wire.RequestWrapper{
		Req: wire.Request{Kind: wire.KindDelete, Key: []byte("k")},
		ID:  wire.Bytes{3},
	}
	resp, err = e.Execute(ctx, delReq)
	if err != nil {
		t.Fatalf("Execute(Delete) error = %v", err)
	}
	if !resp.Data.DelKey.Valid || string(resp.Data.DelKey.Bytes) != "k" {
		t.Fatalf("Execute(Delete) = %+v", resp.Data)
	}

	resp, err = e.Execute(ctx, getReq)
	if err != nil {
		t.Fatalf("Execute(Get) after delete error = %v", err)
	}
	if resp.Data.Value.Valid {
		t.Errorf("Execute(Get) after delete = %+v, want absent", resp.Data)
	}
}

func TestExecuteListExistsCountClear(t *testing.T) {
	e, ctx := newTestExecutor(t)

	for _, k := range []string{"a", "b", "c"} {
		wr := wire.RequestWrapper{Req: wire.Request{Kind: wire.KindSet, Key: []byte(k), Value: []byte("1")}}
		if _, err := e.Execute(ctx, wr); err != nil {
			t.Fatalf("Execute(Set %s) error = %v", k, err)
		}
	}

	listResp, err := e.Execute(ctx, req(wire.KindList, 1))
	if err != nil {
		t.Fatalf("Execute(List) error = %v", err)
	}
	got := make([]string, 0, 3)
	for _, k := range listResp.Data.Keys {
		got = append(got, string(k))
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Execute(List) keys = %v", got)
	}

	existsReq := wire.RequestWrapper{Req: wire.Request{Kind: wire.KindExists, Key: []byte("a")}}
	existsResp, err := e.Execute(ctx, existsReq)
	if err != nil {
		t.Fatalf("Execute(Exists) error = %v", err)
	}
	if !existsResp.Data.Exists {
		t.Error("Execute(Exists) = false, want true")
	}

	countResp, err := e.Execute(ctx, req(wire.KindCount, 2))
	if err != nil {
		t.Fatalf("Execute(Count) error = %v", err)
	}
	if countResp.Data.Count != 3 {
		t.Errorf("Execute(Count) = %d, want 3", countResp.Data.Count)
	}

	clearResp, err := e.Execute(ctx, req(wire.KindClear, 3))
	if err != nil {
		t.Fatalf("Execute(Clear) error = %v", err)
	}
	if clearResp.Message != "Cleared successfully." || clearResp.Data.Kind != wire.DataKindClear {
		t.Fatalf("Execute(Clear) = %+v", clearResp)
	}

	countResp, err = e.Execute(ctx, req(wire.KindCount, 4))
	if err != nil {
		t.Fatalf("Execute(Count) after clear error = %v", err)
	}
	if countResp.Data.Count != 0 {
		t.Errorf("Execute(Count) after clear = %d, want 0", countResp.Data.Count)
	}
}

func TestExecuteBatchGetOrderedAbsentAndPresent(t *testing.T) {
	e, ctx := newTestExecutor(t)

	e.Execute(ctx, wire.RequestWrapper{Req: wire.Request{Kind: wire.KindSet, Key: []byte("a"), Value: []byte("1")}})
	e.Execute(ctx, wire.RequestWrapper{Req: wire.Request{Kind: wire.KindSet, Key: []byte("c"), Value: []byte("3")}})

	batchReq := wire.RequestWrapper{
		Req: wire.Request{Kind: wire.KindBatchGet, Keys: []wire.Bytes{{'a'}, {'b'}, {'c'}}},
		ID:  wire.Bytes{9},
	}
	resp, err := e.Execute(ctx, batchReq)
	if err != nil {
		t.Fatalf("Execute(BatchGet) error = %v", err)
	}
	values := resp.Data.Values
	if len(values) != 3 {
		t.Fatalf("Execute(BatchGet) values = %+v, want 3 entries", values)
	}
	if !values[0].Valid || string(values[0].Bytes) != "1" {
		t.Errorf("Execute(BatchGet)[0] = %+v, want present 1", values[0])
	}
	if values[1].Valid {
		t.Errorf("Execute(BatchGet)[1] = %+v, want absent", values[1])
	}
	if !values[2].Valid || string(values[2].Bytes) != "3" {
		t.Errorf("Execute(BatchGet)[2] = %+v, want present 3", values[2])
	}
}

func TestExecuteSerializesConcurrentCallers(t *testing.T) {
	e, ctx := newTestExecutor(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			wr := wire.RequestWrapper{Req: wire.Request{Kind: wire.KindSet, Key: []byte("shared"), Value: []byte{byte(n)}}}
			if _, err := e.Execute(ctx, wr); err != nil {
				t.Errorf("Execute(Set) error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	countResp, err := e.Execute(ctx, req(wire.KindCount, 1))
	if err != nil {
		t.Fatalf("Execute(Count) error = %v", err)
	}
	if countResp.Data.Count != 1 {
		t.Errorf("Execute(Count) after concurrent overwrites = %d, want 1", countResp.Data.Count)
	}
}

func TestExecuteFailsAfterContextCancelled(t *testing.T) {
	c, err := cipher.NewFromPassphrase("pw")
	if err != nil {
		t.Fatalf("NewFromPassphrase() error = %v", err)
	}
	store, err := storage.Open(filepath.Join(t.TempDir(), "ck.snap"), c, nil)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // executor goroutine exits immediately, never drains the mailbox
	e := New(ctx, store, nil)

	if _, err := e.Execute(ctx, req(wire.KindCount, 1)); err == nil {
		t.Error("Execute() against a stopped executor should fail")
	}
}
