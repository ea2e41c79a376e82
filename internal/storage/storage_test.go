package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/oblivisheee/ckeylock/internal/cipher"
)

func newTestStorage(t *testing.T, path string) *Storage {
	t.Helper()
	c, err := cipher.NewFromPassphrase("pw")
	if err != nil {
		t.Fatalf("NewFromPassphrase() error = %v", err)
	}
	s, err := Open(path, c, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFreshStartIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))
	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

// P1: round-trip.
func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	if _, err := s.Set([]byte("a"), []byte{0x62, 0x63}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := s.Get([]byte("a"))
	if !ok {
		t.Fatal("Get() miss after Set()")
	}
	if !reflect.DeepEqual(got, []byte{0x62, 0x63}) {
		t.Errorf("Get() = %v, want [98 99]", got)
	}
}

// P2: deletion.
func TestDeletion(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	s.Set([]byte("k"), []byte("v"))
	key, existed, err := s.Delete([]byte("k"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed || string(key) != "k" {
		t.Fatalf("Delete() = %v, %v, want present key", key, existed)
	}
	if _, ok := s.Get([]byte("k")); ok {
		t.Error("Get() after Delete() should miss")
	}
	if s.Exists([]byte("k")) {
		t.Error("Exists() after Delete() should be false")
	}
}

func TestDeleteOfMissingKeyIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	key, existed, err := s.Delete([]byte{0x7f})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if existed || key != nil {
		t.Errorf("Delete() of missing key = %v, %v, want nil, false", key, existed)
	}
}

// P3: overwrite.
func TestOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	s.Set([]byte("k"), []byte("v1"))
	before := s.Count()
	s.Set([]byte("k"), []byte("v2"))
	after := s.Count()

	if before != after {
		t.Errorf("Count() changed across overwrite: %d -> %d", before, after)
	}
	got, _ := s.Get([]byte("k"))
	if string(got) != "v2" {
		t.Errorf("Get() = %q, want v2", got)
	}
}

// P4: count accounting.
func TestCountAccounting(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	s.Set([]byte("a"), []byte("1"))
	s.Set([]byte("b"), []byte("2"))
	s.Set([]byte("a"), []byte("3")) // overwrite, not a new key
	if got := s.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}
	s.Delete([]byte("a"))
	if got := s.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	s.Clear()
	if got := s.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
}

// P5: list completeness.
func TestListCompleteness(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	want := []string{"a", "b", "c"}
	for _, k := range want {
		s.Set([]byte(k), []byte("v"))
	}

	got := make([]string, 0, len(want))
	for _, k := range s.List() {
		got = append(got, string(k))
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

// P6: cache consistency.
func TestCacheConsistency(t *testing.T) {
	dir := t.TempDir()
	s := newTestStorage(t, filepath.Join(dir, "ck.snap"))

	s.Set([]byte("k"), []byte("v1"))
	s.Get([]byte("k")) // warm the cache
	s.Set([]byte("k"), []byte("v2"))

	got, ok := s.Get([]byte("k"))
	if !ok || string(got) != "v2" {
		t.Fatalf("Get() = %v, %v, want v2, true", got, ok)
	}

	s.Delete([]byte("k"))
	if _, ok := s.Get([]byte("k")); ok {
		t.Error("Get() immediately after Delete() should miss")
	}
}

// P7: snapshot durability.
func TestSnapshotDurability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ck.snap")
	c, _ := cipher.NewFromPassphrase("pw")

	s, err := Open(path, c, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Set([]byte("foo"), []byte("bar"))
	s.Set([]byte("baz"), []byte("qux"))
	s.Close()

	reopened, err := Open(path, c, nil)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Get([]byte("foo"))
	if !ok || string(got) != "bar" {
		t.Fatalf("Get(foo) after reopen = %v, %v", got, ok)
	}
	if got := reopened.Count(); got != 2 {
		t.Fatalf("Count() after reopen = %d, want 2", got)
	}
}

// P8: encryption authenticity.
func TestTamperDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ck.snap")
	c, _ := cipher.NewFromPassphrase("pw")

	s, err := Open(path, c, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Set([]byte("k"), []byte("v"))
	s.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	raw[len(raw)/2] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Open(path, c, nil); err == nil {
		t.Error("Open() of tampered snapshot should fail")
	}
}

func TestRedundantSyncDoesNotRewriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ck.snap")
	c, _ := cipher.NewFromPassphrase("pw")

	s, err := Open(path, c, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	// Re-setting an absent key to itself is not possible; instead verify
	// that Sync is a no-op when the encoding has not logically changed.
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("redundant Sync() should not rewrite the snapshot file")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := map[string][]byte{
		"":    {},
		"a":   {1, 2, 3},
		"bcd": {},
	}
	decoded, err := decode(encode(data))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if len(decoded) != len(data) {
		t.Fatalf("decode() length = %d, want %d", len(decoded), len(data))
	}
	for k, v := range data {
		got, ok := decoded[k]
		if !ok {
			t.Fatalf("decode() missing key %q", k)
		}
		if !reflect.DeepEqual(got, v) && !(len(got) == 0 && len(v) == 0) {
			t.Errorf("decode()[%q] = %v, want %v", k, got, v)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	data := map[string][]byte{"z": {1}, "a": {2}, "m": {3}}
	first := encode(data)
	second := encode(data)
	if !reflect.DeepEqual(first, second) {
		t.Error("encode() of the same map should be byte-identical across calls")
	}
}
