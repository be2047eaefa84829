package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFiles(t *testing.T) *Files {
	t.Helper()
	files := NewFiles(filepath.Join(t.TempDir(), "sessions"), zerolog.Nop())
	require.NoError(t, files.Bootstrap())
	return files
}

func sampleRecord(x float64) Record {
	return Record{X: x, Y: 1, R: 2, InRegion: true, ObservedAt: "2024-01-01 00:00:00", DurationMillis: 0.5}
}

func TestValidateID(t *testing.T) {
	valid := []string{"abc", "sess_1700000000000_V1StGXR8_Z5jdHi6B-myT", "A.B"}
	for _, id := range valid {
		assert.NoError(t, ValidateID(id), id)
	}

	invalid := []string{"", "..", "a/../b", "a/b", `a\b`, "a\x00b"}
	for _, id := range invalid {
		err := ValidateID(id)
		assert.Error(t, err, id)
		assert.True(t, errors.Is(err, ErrInvalidSessionID), id)
	}
}

func TestFilesBootstrapPermissions(t *testing.T) {
	files := newTestFiles(t)

	info, err := os.Stat(files.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestFilesSaveAndLoad(t *testing.T) {
	files := newTestFiles(t)
	ctx := context.Background()

	records := []Record{sampleRecord(1), sampleRecord(2), sampleRecord(3)}
	require.NoError(t, files.Save(ctx, "abc", records))

	path, err := files.Path("abc")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, found, err := files.Load(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, records, loaded)
}

func TestFilesLoadMissing(t *testing.T) {
	files := newTestFiles(t)

	records, found, err := files.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, records)
}

func TestFilesLoadSkipsMalformedLines(t *testing.T) {
	files := newTestFiles(t)
	path, err := files.Path("mixed")
	require.NoError(t, err)

	lines := []string{
		EncodeLine(sampleRecord(1)),
		EncodeLine(sampleRecord(2)),
		"garbage|line",
		"",
		EncodeLine(sampleRecord(3)) + "\r",
		"1|2|3|maybe|t|0",
		EncodeLine(sampleRecord(4)),
		EncodeLine(sampleRecord(5)),
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))

	records, found, err := files.Load(context.Background(), "mixed")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, float64(i+1), rec.X)
	}
}

func TestFilesLoadOneMalformedAmongFive(t *testing.T) {
	files := newTestFiles(t)
	path, err := files.Path("five")
	require.NoError(t, err)

	lines := []string{
		EncodeLine(sampleRecord(1)),
		EncodeLine(sampleRecord(2)),
		"not|a|valid|record|at|all",
		EncodeLine(sampleRecord(4)),
		EncodeLine(sampleRecord(5)),
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0600))

	records, _, err := files.Load(context.Background(), "five")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []float64{1, 2, 4, 5}, []float64{records[0].X, records[1].X, records[2].X, records[3].X})
}

func TestFilesLoadSkipsOverlongAndBinaryLines(t *testing.T) {
	files := newTestFiles(t)
	path, err := files.Path("noisy")
	require.NoError(t, err)

	content := EncodeLine(sampleRecord(1)) + "\n" +
		strings.Repeat("x", 70*1024) + "\n" +
		"\x00\xff\xfe|\x01\n" +
		EncodeLine(sampleRecord(3)) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	records, found, err := files.Load(context.Background(), "noisy")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, records, 2)
	assert.Equal(t, 1.0, records[0].X)
	assert.Equal(t, 3.0, records[1].X)
}

func TestDecodeFileLineTooLong(t *testing.T) {
	_, err := decodeFileLine(strings.Repeat("1", MaxLineBytes+1))
	var derr *DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Contains(t, err.Error(), "exceeds")

	rec, err := decodeFileLine("  \r\n")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFilesSaveMissingDirectory(t *testing.T) {
	files := NewFiles(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())

	err := files.Save(context.Background(), "abc", []Record{sampleRecord(1)})
	require.Error(t, err)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "save", perr.Op)
	assert.Equal(t, "abc", perr.SessionID)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFilesRemove(t *testing.T) {
	files := newTestFiles(t)
	ctx := context.Background()

	removed, err := files.Remove(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, files.Save(ctx, "abc", []Record{sampleRecord(1)}))
	removed, err = files.Remove(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := files.Load(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFilesRejectInvalidIDs(t *testing.T) {
	files := newTestFiles(t)
	ctx := context.Background()

	err := files.Save(ctx, "../escape", []Record{sampleRecord(1)})
	assert.True(t, errors.Is(err, ErrInvalidSessionID))

	_, _, err = files.Load(ctx, "../escape")
	assert.True(t, errors.Is(err, ErrInvalidSessionID))

	_, err = files.Remove(ctx, "a/b")
	assert.True(t, errors.Is(err, ErrInvalidSessionID))
}

func TestFilesList(t *testing.T) {
	files := newTestFiles(t)
	ctx := context.Background()

	require.NoError(t, files.Save(ctx, "one", []Record{sampleRecord(1)}))
	require.NoError(t, files.Save(ctx, "two", nil))
	require.NoError(t, os.WriteFile(filepath.Join(files.Dir(), "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(files.Dir(), "nested"+FileExt), 0700))

	ids, err := files.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, ids)

	_, err = files.ModTime("one")
	assert.NoError(t, err)
}

func TestFilesListMissingDirectory(t *testing.T) {
	files := NewFiles(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())

	ids, err := files.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
