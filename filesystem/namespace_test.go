package filesystem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func record(name, content string, added time.Time) *FileRecord {
	hash := id_tools.HashBytes([]byte(content))
	return &FileRecord{
		FileName:    name,
		FileHash:    hash,
		ChunkHashes: []id_tools.PeerID{hash},
		Size:        int64(len(content)),
		DateAdded:   added,
	}
}

func TestSplitPath(t *testing.T) {
	parts, err := SplitPath("/a//b/./c/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, parts)

	parts, err = SplitPath("/")
	require.NoError(t, err)
	assert.Empty(t, parts)

	_, err = SplitPath("/a/../b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestAddFileAndGet(t *testing.T) {
	ns := New()
	rec := record("test.txt", "hello", epoch)

	require.NoError(t, ns.AddFile("/test/test2/test3", "test.txt", rec))

	got, err := ns.Get("/test/test2/test3/test.txt")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// returned records are copies
	got.ChunkHashes[0] = id_tools.PeerID{}
	again, err := ns.Get("/test/test2/test3/test.txt")
	require.NoError(t, err)
	assert.Equal(t, rec.ChunkHashes, again.ChunkHashes)
}

func TestAddFileFillsMissingName(t *testing.T) {
	ns := New()
	rec := record("", "x", epoch)
	require.NoError(t, ns.AddFile("/", "x.bin", rec))

	got, err := ns.Get("/x.bin")
	require.NoError(t, err)
	assert.Equal(t, "x.bin", got.FileName)
}

func TestAddFileOverwrites(t *testing.T) {
	ns := New()
	require.NoError(t, ns.AddFile("/", "a.txt", record("a.txt", "v1", epoch)))
	require.NoError(t, ns.AddFile("/", "a.txt", record("a.txt", "v2", epoch)))

	got, err := ns.Get("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, id_tools.HashBytes([]byte("v2")), got.FileHash)
}

func TestAddFileRejectsBadNames(t *testing.T) {
	ns := New()
	for _, name := range []string{"", ".", "..", "a/b"} {
		assert.ErrorIs(t, ns.AddFile("/", name, record(name, "x", epoch)), ErrInvalidPath, "name %q", name)
	}
}

func TestGetErrors(t *testing.T) {
	ns := New()
	require.NoError(t, ns.MakeDirs("/docs"))
	require.NoError(t, ns.AddFile("/docs", "a.txt", record("a.txt", "a", epoch)))

	_, err := ns.Get("/missing/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ns.Get("/docs/b.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ns.Get("/docs")
	assert.ErrorIs(t, err, ErrNotAFile)

	_, err = ns.Get("/")
	assert.ErrorIs(t, err, ErrNotAFile)

	_, err = ns.Get("/docs/a.txt/deeper")
	assert.ErrorIs(t, err, ErrNotADirectory)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ns.List("/docs/a.txt/deeper")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ns.List("/docs/a.txt")
	assert.ErrorIs(t, err, ErrNotADirectory)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMakeDirsIsIdempotent(t *testing.T) {
	ns := New()
	require.NoError(t, ns.MakeDirs("/a/b/c"))
	before, err := ns.Fingerprint("/")
	require.NoError(t, err)

	require.NoError(t, ns.MakeDirs("/a/b/c"))
	require.NoError(t, ns.MakeDirs("/a/b"))
	after, err := ns.Fingerprint("/")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := ns.List("/a/b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Name: "c", IsDir: true}, entries[0])
}

func TestMakeDirsThroughFile(t *testing.T) {
	ns := New()
	require.NoError(t, ns.AddFile("/", "f", record("f", "x", epoch)))
	err := ns.MakeDirs("/f/sub")
	assert.ErrorIs(t, err, ErrNotADirectory)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestListAndWalk(t *testing.T) {
	ns := New()
	require.NoError(t, ns.AddFile("/", "z.txt", record("z.txt", "z", epoch)))
	require.NoError(t, ns.AddFile("/docs", "b.txt", record("b.txt", "b", epoch)))
	require.NoError(t, ns.AddFile("/docs", "a.txt", record("a.txt", "a", epoch)))

	entries, err := ns.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "docs", entries[0].Name)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "z.txt", entries[1].Name)
	assert.False(t, entries[1].IsDir)

	_, err = ns.List("/nope")
	assert.ErrorIs(t, err, ErrNotFound)

	files := ns.Walk()
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"/docs/a.txt", "/docs/b.txt", "/z.txt"}, paths)
}

func TestString(t *testing.T) {
	ns := New()
	require.NoError(t, ns.AddFile("/test/test2", "test.txt", record("test.txt", "t", epoch)))
	require.NoError(t, ns.AddFile("/", "test2.txt", record("test2.txt", "t2", epoch)))

	assert.Equal(t, "test/\n  test2/\n    test.txt\ntest2.txt", ns.String())
}

func TestSnapshotIsDetached(t *testing.T) {
	ns := New()
	require.NoError(t, ns.AddFile("/", "a.txt", record("a.txt", "a", epoch)))

	snap := ns.Snapshot()
	snap.Children["b.txt"] = NewFile(record("b.txt", "b", epoch))

	_, err := ns.Get("/b.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromTree(t *testing.T) {
	_, err := FromTree(NewFile(record("a", "a", epoch)))
	assert.ErrorIs(t, err, ErrNotADirectory)

	src := New()
	require.NoError(t, src.AddFile("/x", "a.txt", record("a.txt", "a", epoch)))
	copyNS, err := FromTree(src.Snapshot())
	require.NoError(t, err)

	want, _ := src.Fingerprint("/")
	got, _ := copyNS.Fingerprint("/")
	assert.Equal(t, want, got)
}
