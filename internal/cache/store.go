package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/repository"
)

const (
	entryFileExtensionConstant        = ".json"
	temporaryEntryPrefixConstant      = ".entry-"
	temporaryEntryPatternConstant     = temporaryEntryPrefixConstant + "*"
	lockFileNameConstant              = ".ygg-cache.lock"
	keyComponentSeparatorConstant     = "\x00"
	shardPrefixLengthConstant         = 2
	stripeCountConstant               = 64
	defaultMemoryEntriesConstant      = 4096
	directoryPermissionsConstant      = 0o755
	entryIndentConstant               = "  "
	directoryRequiredMessageConstant  = "cache directory must be provided"
	unsupportedStatusTemplateConstant = "cache entries with status %q are not stored"
	directoryUnavailableLogConstant   = "cache directory unavailable; continuing with memory-only cache"
	entryUnreadableLogConstant        = "discarding unreadable cache entry"
	entryMismatchLogConstant          = "discarding cache entry for a different key"
	writeEntryErrorTemplateConstant   = "unable to write cache entry %s: %w"
	clearErrorTemplateConstant        = "unable to clear cache %s: %w"
	lockErrorTemplateConstant         = "unable to lock cache %s: %w"
	memoryCacheErrorTemplateConstant  = "unable to create memory cache: %w"
	logFieldDirectoryConstant         = "cache_directory"
	logFieldEntryPathConstant         = "entry_path"
	logFieldFetchKeyConstant          = "fetch_key"
)

// Status records what a fetch concluded about a file.
type Status string

// Cache entry statuses.
const (
	StatusFound    Status = Status("found")
	StatusNotFound Status = Status("not_found")
	StatusError    Status = Status("error")
)

// Entry is a cached fetch result.
type Entry struct {
	Key       repository.FetchKey
	Content   []byte
	FetchedAt time.Time
	Status    Status
	ETag      string
}

// Stats summarizes the persisted cache.
type Stats struct {
	Directory  string
	Entries    int
	TotalBytes int64
}

// UnsupportedStatusError is returned when an entry with a non-definitive status is stored.
type UnsupportedStatusError struct {
	Status Status
}

// Error describes the rejected status.
func (statusError UnsupportedStatusError) Error() string {
	return fmt.Sprintf(unsupportedStatusTemplateConstant, statusError.Status)
}

// Options configures Open.
type Options struct {
	Directory     string
	MemoryEntries int
	Logger        *zap.Logger
}

// Store persists fetch results on disk keyed by a digest of the FetchKey.
// It is safe for concurrent use by multiple goroutines and processes.
type Store struct {
	directory    string
	diskEnabled  bool
	memory       *lru.Cache[string, Entry]
	clearGuard   sync.RWMutex
	keyStripes   [stripeCountConstant]sync.Mutex
	lockFilePath string
	logger       *zap.Logger
}

type entryDocument struct {
	Repository string    `json:"repository"`
	FilePath   string    `json:"file_path"`
	Ref        string    `json:"ref,omitempty"`
	Status     Status    `json:"status"`
	FetchedAt  time.Time `json:"fetched_at"`
	ETag       string    `json:"etag,omitempty"`
	Content    []byte    `json:"content,omitempty"`
}

// Open prepares a store rooted at the configured directory.
// An unusable directory degrades to a memory-only store instead of failing.
func Open(options Options) (*Store, error) {
	trimmedDirectory := strings.TrimSpace(options.Directory)
	if len(trimmedDirectory) == 0 {
		return nil, errors.New(directoryRequiredMessageConstant)
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	memoryEntries := options.MemoryEntries
	if memoryEntries <= 0 {
		memoryEntries = defaultMemoryEntriesConstant
	}

	memory, memoryError := lru.New[string, Entry](memoryEntries)
	if memoryError != nil {
		return nil, fmt.Errorf(memoryCacheErrorTemplateConstant, memoryError)
	}

	store := &Store{
		directory:    trimmedDirectory,
		diskEnabled:  true,
		memory:       memory,
		lockFilePath: filepath.Join(trimmedDirectory, lockFileNameConstant),
		logger:       logger,
	}

	if mkdirError := os.MkdirAll(trimmedDirectory, directoryPermissionsConstant); mkdirError != nil {
		logger.Warn(directoryUnavailableLogConstant, zap.String(logFieldDirectoryConstant, trimmedDirectory), zap.Error(mkdirError))
		store.diskEnabled = false
	}

	return store, nil
}

// Directory returns the root directory of the store.
func (store *Store) Directory() string {
	return store.directory
}

// Get returns the cached entry for key. Missing, corrupt, or unreadable entries report false.
func (store *Store) Get(key repository.FetchKey) (Entry, bool) {
	digest := Digest(key)
	if cachedEntry, found := store.memory.Get(digest); found {
		return cachedEntry, true
	}

	if !store.diskEnabled {
		return Entry{}, false
	}

	store.clearGuard.RLock()
	defer store.clearGuard.RUnlock()

	entryPath := store.entryPath(digest)
	contentBytes, readError := os.ReadFile(entryPath)
	if readError != nil {
		if !errors.Is(readError, fs.ErrNotExist) {
			store.logger.Debug(entryUnreadableLogConstant, zap.String(logFieldEntryPathConstant, entryPath), zap.Error(readError))
		}
		return Entry{}, false
	}

	document, valid := decodeEntryDocument(contentBytes)
	if !valid {
		store.logger.Debug(entryUnreadableLogConstant, zap.String(logFieldEntryPathConstant, entryPath))
		store.discard(digest, entryPath)
		return Entry{}, false
	}

	if !document.matches(key) {
		store.logger.Debug(entryMismatchLogConstant, zap.String(logFieldEntryPathConstant, entryPath), zap.String(logFieldFetchKeyConstant, key.String()))
		return Entry{}, false
	}

	entry := Entry{
		Key:       key,
		Content:   document.Content,
		FetchedAt: document.FetchedAt,
		Status:    document.Status,
		ETag:      document.ETag,
	}
	store.memory.Add(digest, entry)
	return entry, true
}

// Put records an entry for key, replacing any previous value. Only found and not-found entries are stored.
func (store *Store) Put(key repository.FetchKey, entry Entry) error {
	if !entry.Status.definitive() {
		return UnsupportedStatusError{Status: entry.Status}
	}

	storedEntry := entry
	storedEntry.Key = key
	if entry.Content != nil {
		storedEntry.Content = append([]byte(nil), entry.Content...)
	}

	digest := Digest(key)

	store.clearGuard.RLock()
	defer store.clearGuard.RUnlock()

	stripe := store.stripeFor(digest)
	stripe.Lock()
	defer stripe.Unlock()

	store.memory.Add(digest, storedEntry)

	if !store.diskEnabled {
		return nil
	}

	sharedLock := flock.New(store.lockFilePath)
	if lockError := sharedLock.RLock(); lockError != nil {
		return fmt.Errorf(lockErrorTemplateConstant, store.directory, lockError)
	}
	defer func() {
		_ = sharedLock.Unlock()
	}()

	if writeError := store.writeEntry(digest, storedEntry); writeError != nil {
		return fmt.Errorf(writeEntryErrorTemplateConstant, key, writeError)
	}
	return nil
}

// Delete removes the entry for key so that the next lookup misses.
func (store *Store) Delete(key repository.FetchKey) error {
	digest := Digest(key)

	store.clearGuard.RLock()
	defer store.clearGuard.RUnlock()

	stripe := store.stripeFor(digest)
	stripe.Lock()
	defer stripe.Unlock()

	store.memory.Remove(digest)
	if !store.diskEnabled {
		return nil
	}

	removeError := os.Remove(store.entryPath(digest))
	if removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
		return removeError
	}
	return nil
}

// Clear removes every entry from memory and disk. Files the store did not create are left in place.
func (store *Store) Clear() error {
	store.clearGuard.Lock()
	defer store.clearGuard.Unlock()

	store.memory.Purge()
	if !store.diskEnabled {
		return nil
	}

	exclusiveLock := flock.New(store.lockFilePath)
	if lockError := exclusiveLock.Lock(); lockError != nil {
		return fmt.Errorf(lockErrorTemplateConstant, store.directory, lockError)
	}
	defer func() {
		_ = exclusiveLock.Unlock()
	}()

	directoryEntries, readError := os.ReadDir(store.directory)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(clearErrorTemplateConstant, store.directory, readError)
	}

	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() || !isShardName(directoryEntry.Name()) {
			continue
		}
		if clearError := clearShard(filepath.Join(store.directory, directoryEntry.Name())); clearError != nil {
			return fmt.Errorf(clearErrorTemplateConstant, store.directory, clearError)
		}
	}
	return nil
}

// clearShard removes entry and temporary files from one shard and drops the shard once it is empty.
func clearShard(shardDirectory string) error {
	shardEntries, readError := os.ReadDir(shardDirectory)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil
		}
		return readError
	}

	for _, shardEntry := range shardEntries {
		if shardEntry.IsDir() || !isOwnedFileName(shardEntry.Name()) {
			continue
		}
		removeError := os.Remove(filepath.Join(shardDirectory, shardEntry.Name()))
		if removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
			return removeError
		}
	}

	_ = os.Remove(shardDirectory)
	return nil
}

// Stats counts persisted entries and their size on disk.
func (store *Store) Stats() (Stats, error) {
	stats := Stats{Directory: store.directory}
	if !store.diskEnabled {
		return stats, nil
	}

	store.clearGuard.RLock()
	defer store.clearGuard.RUnlock()

	directoryEntries, readError := os.ReadDir(store.directory)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return stats, nil
		}
		return Stats{}, readError
	}

	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() || !isShardName(directoryEntry.Name()) {
			continue
		}
		shardEntries, shardError := os.ReadDir(filepath.Join(store.directory, directoryEntry.Name()))
		if shardError != nil {
			continue
		}
		for _, shardEntry := range shardEntries {
			if shardEntry.IsDir() || !isEntryFileName(shardEntry.Name()) {
				continue
			}
			fileInfo, infoError := shardEntry.Info()
			if infoError != nil {
				continue
			}
			stats.Entries++
			stats.TotalBytes += fileInfo.Size()
		}
	}
	return stats, nil
}

// Digest derives the deterministic storage key for a FetchKey.
func Digest(key repository.FetchKey) string {
	normalized := strings.Join([]string{
		key.Repository.Key(),
		key.NormalizedFilePath(),
		strings.TrimSpace(key.Ref),
	}, keyComponentSeparatorConstant)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// EntryPath returns the file that holds the entry for key.
func (store *Store) EntryPath(key repository.FetchKey) string {
	return store.entryPath(Digest(key))
}

func (store *Store) entryPath(digest string) string {
	return filepath.Join(store.directory, digest[:shardPrefixLengthConstant], digest+entryFileExtensionConstant)
}

func (store *Store) stripeFor(digest string) *sync.Mutex {
	decoded, decodeError := hex.DecodeString(digest[:shardPrefixLengthConstant])
	if decodeError != nil || len(decoded) == 0 {
		return &store.keyStripes[0]
	}
	return &store.keyStripes[int(decoded[0])%stripeCountConstant]
}

func (store *Store) writeEntry(digest string, entry Entry) error {
	entryPath := store.entryPath(digest)
	shardDirectory := filepath.Dir(entryPath)
	if mkdirError := os.MkdirAll(shardDirectory, directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}

	document := entryDocument{
		Repository: entry.Key.Repository.String(),
		FilePath:   entry.Key.NormalizedFilePath(),
		Ref:        strings.TrimSpace(entry.Key.Ref),
		Status:     entry.Status,
		FetchedAt:  entry.FetchedAt.UTC(),
		ETag:       entry.ETag,
		Content:    entry.Content,
	}
	encoded, encodeError := json.MarshalIndent(document, "", entryIndentConstant)
	if encodeError != nil {
		return encodeError
	}

	temporaryFile, createError := os.CreateTemp(shardDirectory, temporaryEntryPatternConstant)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(encoded); writeError != nil {
		_ = temporaryFile.Close()
		_ = os.Remove(temporaryPath)
		return writeError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		_ = os.Remove(temporaryPath)
		return closeError
	}
	if renameError := os.Rename(temporaryPath, entryPath); renameError != nil {
		_ = os.Remove(temporaryPath)
		return renameError
	}
	return nil
}

// discard removes an unreadable entry file unless a writer replaced it since it was read.
func (store *Store) discard(digest string, entryPath string) {
	stripe := store.stripeFor(digest)
	stripe.Lock()
	defer stripe.Unlock()

	contentBytes, readError := os.ReadFile(entryPath)
	if readError != nil {
		return
	}
	if _, valid := decodeEntryDocument(contentBytes); valid {
		return
	}
	_ = os.Remove(entryPath)
}

func decodeEntryDocument(contentBytes []byte) (entryDocument, bool) {
	var document entryDocument
	if decodeError := json.Unmarshal(contentBytes, &document); decodeError != nil {
		return entryDocument{}, false
	}
	return document, document.Status.definitive()
}

func isShardName(name string) bool {
	return len(name) == shardPrefixLengthConstant && isLowerHex(name)
}

func isOwnedFileName(name string) bool {
	return strings.HasPrefix(name, temporaryEntryPrefixConstant) || isEntryFileName(name)
}

func isEntryFileName(name string) bool {
	digest, hasExtension := strings.CutSuffix(name, entryFileExtensionConstant)
	return hasExtension && len(digest) == sha256.Size*2 && isLowerHex(digest)
}

func isLowerHex(value string) bool {
	for _, character := range value {
		if (character < '0' || character > '9') && (character < 'a' || character > 'f') {
			return false
		}
	}
	return true
}

func (status Status) definitive() bool {
	return status == StatusFound || status == StatusNotFound
}

func (document entryDocument) matches(key repository.FetchKey) bool {
	documentReference, parseError := repository.Parse(document.Repository)
	if parseError != nil {
		return false
	}
	return documentReference.Equal(key.Repository) &&
		document.FilePath == key.NormalizedFilePath() &&
		document.Ref == strings.TrimSpace(key.Ref)
}
