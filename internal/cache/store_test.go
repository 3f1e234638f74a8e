package cache_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/repository"
)

const (
	testLockfilePathConstant = "package-lock.json"
	testContentConstant      = `{"lockfileVersion":3}`
	testETagConstant         = `"abc123"`
)

var testFetchedAt = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(testInstance *testing.T, directory string) *cache.Store {
	testInstance.Helper()
	store, openError := cache.Open(cache.Options{Directory: directory, MemoryEntries: 16})
	require.NoError(testInstance, openError)
	return store
}

func testKey(owner string, name string) repository.FetchKey {
	return repository.FetchKey{Repository: repository.Reference{Owner: owner, Name: name}, FilePath: testLockfilePathConstant}
}

func TestStoreRoundTrip(testInstance *testing.T) {
	testCases := []struct {
		name  string
		entry cache.Entry
	}{
		{
			name:  "found",
			entry: cache.Entry{Content: []byte(testContentConstant), FetchedAt: testFetchedAt, Status: cache.StatusFound, ETag: testETagConstant},
		},
		{
			name:  "not_found",
			entry: cache.Entry{FetchedAt: testFetchedAt, Status: cache.StatusNotFound},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			directory := testInstance.TempDir()
			key := testKey("acme", "app")

			writer := newTestStore(testInstance, directory)
			require.NoError(testInstance, writer.Put(key, testCase.entry))

			first, firstFound := writer.Get(key)
			second, secondFound := writer.Get(key)
			require.True(testInstance, firstFound)
			require.True(testInstance, secondFound)
			require.Equal(testInstance, first, second)

			reader := newTestStore(testInstance, directory)
			persisted, persistedFound := reader.Get(key)
			require.True(testInstance, persistedFound)
			require.Equal(testInstance, testCase.entry.Status, persisted.Status)
			require.Equal(testInstance, testCase.entry.ETag, persisted.ETag)
			require.Equal(testInstance, testCase.entry.Content, persisted.Content)
			require.True(testInstance, testCase.entry.FetchedAt.Equal(persisted.FetchedAt))
		})
	}
}

func TestStoreKeysIgnoreRepositoryCase(testInstance *testing.T) {
	store := newTestStore(testInstance, testInstance.TempDir())
	require.NoError(testInstance, store.Put(testKey("Acme", "App"), cache.Entry{Status: cache.StatusNotFound, FetchedAt: testFetchedAt}))

	entry, found := store.Get(testKey("acme", "app"))
	require.True(testInstance, found)
	require.Equal(testInstance, cache.StatusNotFound, entry.Status)
}

func TestStoreClearRemovesEveryEntry(testInstance *testing.T) {
	directory := testInstance.TempDir()
	store := newTestStore(testInstance, directory)

	keys := []repository.FetchKey{testKey("acme", "app"), testKey("acme", "lib"), testKey("other", "tool")}
	for _, key := range keys {
		require.NoError(testInstance, store.Put(key, cache.Entry{Status: cache.StatusFound, Content: []byte(testContentConstant), FetchedAt: testFetchedAt}))
	}

	stats, statsError := store.Stats()
	require.NoError(testInstance, statsError)
	require.Equal(testInstance, len(keys), stats.Entries)
	require.Positive(testInstance, stats.TotalBytes)

	require.NoError(testInstance, store.Clear())

	for _, key := range keys {
		_, found := store.Get(key)
		require.False(testInstance, found)
	}

	reopened := newTestStore(testInstance, directory)
	for _, key := range keys {
		_, found := reopened.Get(key)
		require.False(testInstance, found)
	}

	clearedStats, clearedStatsError := reopened.Stats()
	require.NoError(testInstance, clearedStatsError)
	require.Zero(testInstance, clearedStats.Entries)
}

func TestStoreClearKeepsForeignFiles(testInstance *testing.T) {
	directory := testInstance.TempDir()
	store := newTestStore(testInstance, directory)
	key := testKey("acme", "app")
	require.NoError(testInstance, store.Put(key, cache.Entry{Status: cache.StatusFound, Content: []byte(testContentConstant), FetchedAt: testFetchedAt}))

	shardDirectory := filepath.Dir(store.EntryPath(key))
	foreignFiles := []string{
		filepath.Join(directory, "notes.txt"),
		filepath.Join(directory, "docs", "readme.json"),
		filepath.Join(directory, "AB", "upper.json"),
		filepath.Join(shardDirectory, "notes.txt"),
	}
	for _, foreignFile := range foreignFiles {
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(foreignFile), 0o755))
		require.NoError(testInstance, os.WriteFile(foreignFile, []byte("keep"), 0o600))
	}

	stats, statsError := store.Stats()
	require.NoError(testInstance, statsError)
	require.Equal(testInstance, 1, stats.Entries)

	require.NoError(testInstance, store.Clear())

	require.NoFileExists(testInstance, store.EntryPath(key))
	for _, foreignFile := range foreignFiles {
		require.FileExists(testInstance, foreignFile)
	}
	_, found := newTestStore(testInstance, directory).Get(key)
	require.False(testInstance, found)
}

func TestStoreDeleteInvalidatesSingleEntry(testInstance *testing.T) {
	store := newTestStore(testInstance, testInstance.TempDir())
	removedKey := testKey("acme", "app")
	keptKey := testKey("acme", "lib")

	require.NoError(testInstance, store.Put(removedKey, cache.Entry{Status: cache.StatusNotFound, FetchedAt: testFetchedAt}))
	require.NoError(testInstance, store.Put(keptKey, cache.Entry{Status: cache.StatusNotFound, FetchedAt: testFetchedAt}))
	require.NoError(testInstance, store.Delete(removedKey))

	_, removedFound := store.Get(removedKey)
	_, keptFound := store.Get(keptKey)
	require.False(testInstance, removedFound)
	require.True(testInstance, keptFound)
}

func TestStoreRejectsErrorEntries(testInstance *testing.T) {
	store := newTestStore(testInstance, testInstance.TempDir())

	putError := store.Put(testKey("acme", "app"), cache.Entry{Status: cache.StatusError})

	require.ErrorAs(testInstance, putError, &cache.UnsupportedStatusError{})
	_, found := store.Get(testKey("acme", "app"))
	require.False(testInstance, found)
}

func TestStoreTreatsCorruptEntriesAsMissing(testInstance *testing.T) {
	directory := testInstance.TempDir()
	key := testKey("acme", "app")

	writer := newTestStore(testInstance, directory)
	require.NoError(testInstance, writer.Put(key, cache.Entry{Status: cache.StatusFound, Content: []byte(testContentConstant), FetchedAt: testFetchedAt}))

	entryPath := writer.EntryPath(key)
	require.NoError(testInstance, os.WriteFile(entryPath, []byte("{not json"), 0o600))

	reader := newTestStore(testInstance, directory)
	_, found := reader.Get(key)
	require.False(testInstance, found)
	require.NoFileExists(testInstance, entryPath)
}

func TestStoreDegradesWhenDirectoryUnusable(testInstance *testing.T) {
	blockingFile := filepath.Join(testInstance.TempDir(), "occupied")
	require.NoError(testInstance, os.WriteFile(blockingFile, []byte("file"), 0o600))

	store, openError := cache.Open(cache.Options{Directory: filepath.Join(blockingFile, "cache")})
	require.NoError(testInstance, openError)

	key := testKey("acme", "app")
	require.NoError(testInstance, store.Put(key, cache.Entry{Status: cache.StatusNotFound, FetchedAt: testFetchedAt}))
	_, found := store.Get(key)
	require.True(testInstance, found)
}

func TestStoreLayoutIsDeterministic(testInstance *testing.T) {
	directory := testInstance.TempDir()
	store := newTestStore(testInstance, directory)
	key := testKey("acme", "app")

	digest := cache.Digest(key)
	require.Equal(testInstance, digest, cache.Digest(testKey("ACME", "APP")))
	require.Equal(testInstance, filepath.Join(directory, digest[:2], digest+".json"), store.EntryPath(key))

	withRef := key
	withRef.Ref = "main"
	require.NotEqual(testInstance, digest, cache.Digest(withRef))
}

func TestStoreConcurrentWriters(testInstance *testing.T) {
	store := newTestStore(testInstance, testInstance.TempDir())

	var waitGroup sync.WaitGroup
	for writerIndex := 0; writerIndex < 32; writerIndex++ {
		waitGroup.Add(1)
		go func(writerIndex int) {
			defer waitGroup.Done()
			key := testKey("acme", fmt.Sprintf("repo-%d", writerIndex%4))
			putError := store.Put(key, cache.Entry{Status: cache.StatusFound, Content: []byte(testContentConstant), FetchedAt: testFetchedAt})
			require.NoError(testInstance, putError)
			_, _ = store.Get(key)
		}(writerIndex)
	}
	waitGroup.Wait()

	for repositoryIndex := 0; repositoryIndex < 4; repositoryIndex++ {
		entry, found := store.Get(testKey("acme", fmt.Sprintf("repo-%d", repositoryIndex)))
		require.True(testInstance, found)
		require.Equal(testInstance, []byte(testContentConstant), entry.Content)
	}
}
