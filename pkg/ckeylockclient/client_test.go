package ckeylockclient

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oblivisheee/ckeylock/internal/cipher"
	"github.com/oblivisheee/ckeylock/internal/executor"
	"github.com/oblivisheee/ckeylock/internal/storage"
	"github.com/oblivisheee/ckeylock/internal/wsserver"
)

func newTestServer(t *testing.T, password *string) (*httptest.Server, func()) {
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
	exec := executor.New(ctx, store, nil)
	srv := wsserver.New(exec, password, 0, nil, nil)

	ts := httptest.NewServer(srv)
	return ts, func() {
		ts.Close()
		cancel()
		store.Close()
	}
}

func TestClientRoundTrip(t *testing.T) {
	ts, cleanup := newTestServer(t, nil)
	defer cleanup()

	bind := strings.TrimPrefix(ts.URL, "http://")
	client, err := Dial(bind, "")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, ok, err := client.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(value) != "v" {
		t.Fatalf("Get() = %v, %v, want v, true", value, ok)
	}

	exists, err := client.Exists([]byte("k"))
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false, want true")
	}

	count, err := client.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	delKey, existed, err := client.Delete([]byte("k"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed || string(delKey) != "k" {
		t.Fatalf("Delete() = %v, %v", delKey, existed)
	}

	if err := client.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
}

func TestClientBatchGet(t *testing.T) {
	ts, cleanup := newTestServer(t, nil)
	defer cleanup()

	bind := strings.TrimPrefix(ts.URL, "http://")
	client, err := Dial(bind, "")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	client.Set([]byte("a"), []byte("1"))
	client.Set([]byte("c"), []byte("3"))

	values, oks, err := client.BatchGet([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if len(values) != 3 || len(oks) != 3 {
		t.Fatalf("BatchGet() = %v, %v", values, oks)
	}
	if !oks[0] || string(values[0]) != "1" {
		t.Errorf("BatchGet()[0] = %v, %v", values[0], oks[0])
	}
	if oks[1] {
		t.Errorf("BatchGet()[1] = %v, %v, want absent", values[1], oks[1])
	}
	if !oks[2] || string(values[2]) != "3" {
		t.Errorf("BatchGet()[2] = %v, %v", values[2], oks[2])
	}
}

func TestClientAuthRequired(t *testing.T) {
	pw := "sesame"
	ts, cleanup := newTestServer(t, &pw)
	defer cleanup()

	bind := strings.TrimPrefix(ts.URL, "http://")

	if _, err := Dial(bind, ""); err == nil {
		t.Error("Dial() without password should fail")
	}

	client, err := Dial(bind, "sesame")
	if err != nil {
		t.Fatalf("Dial() with correct password error = %v", err)
	}
	defer client.Close()

	if _, err := client.Count(); err != nil {
		t.Fatalf("Count() error = %v", err)
	}
}
