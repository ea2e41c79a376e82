// Package storage implements CKeyLock's in-memory map, its read-through LRU
// cache, and the encrypted full-rewrite snapshot file that backs it.
//
// Storage is owned exclusively by the executor goroutine (see
// internal/executor): every method here assumes single-writer access and
// takes no locks of its own. The original Rust implementation wrapped its
// map in a DashMap despite the same single-writer discipline; that
// redundant synchronisation is the one thing this package deliberately does
// not carry over. Logging follows the same shape as that implementation's
// tracing calls (storage.rs logs every Set/Get/Delete/Sync at debug/info/
// warn), translated to the logrus-based internal/log the rest of the
// service uses.
package storage

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"

	"github.com/oblivisheee/ckeylock/internal/apperror"
	"github.com/oblivisheee/ckeylock/internal/cipher"
	"github.com/oblivisheee/ckeylock/internal/hexutil"
	"github.com/oblivisheee/ckeylock/internal/log"
)

// CacheSize is the fixed capacity of the read-through LRU cache.
const CacheSize = 100

// keyLogLimit bounds how many bytes of a key are rendered in a log line.
const keyLogLimit = 16

// Storage owns the in-memory map, its LRU accelerator, and the encrypted
// snapshot file at path.
type Storage struct {
	data     map[string][]byte
	cache    *lru.Cache[string, []byte]
	cipher   *cipher.Cipher
	file     *os.File
	checksum [32]byte
	logger   *log.Logger
}

// Open loads Storage from path, creating an empty snapshot if path does not
// exist. The dirty-check checksum is seeded from the plaintext encoding in
// both branches, so the first mutation after a fresh create performs no
// redundant rewrite and the first mutation after reopening an existing
// snapshot only rewrites if the logical content actually changed. logger
// may be nil, in which case Storage logs nothing.
func Open(path string, c *cipher.Cipher, logger *log.Logger) (*Storage, error) {
	logInfo(logger, "opening storage", logrus.Fields{"path": path})

	cache, err := lru.New[string, []byte](CacheSize)
	if err != nil {
		return nil, fmt.Errorf("storage: new LRU cache: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return newEmpty(path, c, cache, logger)
	} else if err != nil {
		return nil, apperror.StorageIO(err)
	}
	return openExisting(path, c, cache, logger)
}

func newEmpty(path string, c *cipher.Cipher, cache *lru.Cache[string, []byte], logger *log.Logger) (*Storage, error) {
	logInfo(logger, "creating new empty storage", logrus.Fields{"path": path})

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, apperror.StorageIO(err)
	}

	data := make(map[string][]byte)
	plaintext := encode(data)
	checksum := sha3.Sum256(plaintext)

	blob, err := c.Encrypt(plaintext, nil)
	if err != nil {
		file.Close()
		return nil, apperror.StorageAEAD(err)
	}
	if _, err := file.Write(blob); err != nil {
		file.Close()
		return nil, apperror.StorageIO(err)
	}

	logInfo(logger, "empty storage created", nil)
	return &Storage{data: data, cache: cache, cipher: c, file: file, checksum: checksum, logger: logger}, nil
}

func openExisting(path string, c *cipher.Cipher, cache *lru.Cache[string, []byte], logger *log.Logger) (*Storage, error) {
	logInfo(logger, "loading storage from file", logrus.Fields{"path": path})

	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, apperror.StorageIO(err)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		file.Close()
		return nil, apperror.StorageIO(err)
	}

	plaintext, err := c.Decrypt(blob)
	if err != nil {
		file.Close()
		return nil, apperror.StorageAEAD(err)
	}

	data, err := decode(plaintext)
	if err != nil {
		file.Close()
		return nil, apperror.StorageDecode(err)
	}

	checksum := sha3.Sum256(plaintext)
	logInfo(logger, "storage loaded from file", logrus.Fields{"keys": len(data)})
	return &Storage{data: data, cache: cache, cipher: c, file: file, checksum: checksum, logger: logger}, nil
}

// Close releases the underlying snapshot file handle.
func (s *Storage) Close() error {
	return s.file.Close()
}

// Set inserts or overwrites key with value, refreshes the cache entry, and
// triggers Sync. It returns key on success.
func (s *Storage) Set(key, value []byte) ([]byte, error) {
	k := string(key)
	s.data[k] = append([]byte(nil), value...)
	s.cache.Add(k, s.data[k])

	if err := s.Sync(); err != nil {
		return nil, err
	}
	logInfo(s.logger, "key set", logrus.Fields{"key": hexutil.Short(key, keyLogLimit)})
	return key, nil
}

// Get returns the value for key, consulting the cache first. A cache miss
// that finds the key in the map populates the cache before returning.
func (s *Storage) Get(key []byte) ([]byte, bool) {
	k := string(key)
	if v, ok := s.cache.Get(k); ok {
		logDebug(s.logger, "cache hit", logrus.Fields{"key": hexutil.Short(key, keyLogLimit)})
		return v, true
	}
	if v, ok := s.data[k]; ok {
		s.cache.Add(k, v)
		logDebug(s.logger, "key found", logrus.Fields{"key": hexutil.Short(key, keyLogLimit)})
		return v, true
	}
	logWarn(s.logger, "key not found", logrus.Fields{"key": hexutil.Short(key, keyLogLimit)})
	return nil, false
}

// Delete evicts key from the cache and the map, then triggers Sync. It
// returns the deleted key if it existed, or false if it did not.
func (s *Storage) Delete(key []byte) ([]byte, bool, error) {
	k := string(key)
	s.cache.Remove(k)

	_, existed := s.data[k]
	delete(s.data, k)

	if err := s.Sync(); err != nil {
		return nil, false, err
	}
	if !existed {
		logWarn(s.logger, "key not found for deletion", logrus.Fields{"key": hexutil.Short(key, keyLogLimit)})
		return nil, false, nil
	}
	logInfo(s.logger, "key deleted", logrus.Fields{"key": hexutil.Short(key, keyLogLimit)})
	return key, true, nil
}

// List returns every key currently in the map. Order is unspecified. List
// does not touch Sync.
func (s *Storage) List() [][]byte {
	keys := make([][]byte, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, []byte(k))
	}
	logDebug(s.logger, "listed keys", logrus.Fields{"count": len(keys)})
	return keys
}

// Exists reports whether key is present in the map. It does not touch the
// cache or Sync.
func (s *Storage) Exists(key []byte) bool {
	_, ok := s.data[string(key)]
	return ok
}

// Count returns the current number of keys in the map.
func (s *Storage) Count() int {
	return len(s.data)
}

// Clear empties both the map and the cache, then triggers Sync.
func (s *Storage) Clear() error {
	s.data = make(map[string][]byte)
	s.cache.Purge()
	if err := s.Sync(); err != nil {
		return err
	}
	logInfo(s.logger, "storage cleared", nil)
	return nil
}

// Sync encodes the current map, and rewrites the snapshot file only if the
// encoding's digest differs from the last one written — an idempotent
// mutation (setting a key to its existing value, deleting a missing key)
// performs no I/O.
func (s *Storage) Sync() error {
	logDebug(s.logger, "syncing storage", nil)

	plaintext := encode(s.data)
	checksum := sha3.Sum256(plaintext)
	if checksum == s.checksum {
		logDebug(s.logger, "no changes detected, skipping sync", nil)
		return nil
	}

	blob, err := s.cipher.Encrypt(plaintext, nil)
	if err != nil {
		return apperror.StorageAEAD(err)
	}

	if err := s.file.Truncate(0); err != nil {
		return apperror.StorageIO(err)
	}
	if _, err := s.file.Seek(0, 0); err != nil {
		return apperror.StorageIO(err)
	}
	if _, err := s.file.Write(blob); err != nil {
		return apperror.StorageIO(err)
	}
	if err := s.file.Sync(); err != nil {
		return apperror.StorageIO(err)
	}

	s.checksum = checksum
	logInfo(s.logger, "storage synced", nil)
	return nil
}

func logDebug(l *log.Logger, msg string, fields logrus.Fields) {
	if l == nil {
		return
	}
	l.Base().WithFields(fields).Debug(msg)
}

func logInfo(l *log.Logger, msg string, fields logrus.Fields) {
	if l == nil {
		return
	}
	l.Base().WithFields(fields).Info(msg)
}

func logWarn(l *log.Logger, msg string, fields logrus.Fields) {
	if l == nil {
		return
	}
	l.Base().WithFields(fields).Warn(msg)
}
