package archive

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name string
	body []byte
}

func buildZip(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		if e.body != nil {
			_, err = w.Write(e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractAndFindCSVFiles(t *testing.T) {
	data := buildZip(t,
		entry{"sales_b.csv", []byte("id,amount\n1,10\n")},
		entry{"sales_a.CSV", []byte("id,amount\n2,20\n")},
		entry{"readme.txt", []byte("not a csv")},
		entry{"nested/", nil},
		entry{"nested/deep.csv", []byte("x\n1\n")},
		entry{"__MACOSX/._sales_a.CSV", []byte("junk")},
		entry{"._hidden.csv", []byte("junk")},
	)
	dir := filepath.Join(t.TempDir(), "work")
	got, err := Extract(data, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	files, err := FindCSVFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales_a.CSV", "sales_b.csv"}, files)

	b, err := os.ReadFile(filepath.Join(dir, "nested", "deep.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x\n1\n", string(b))
}

func TestExtractOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	_, err := Extract(buildZip(t, entry{"a.csv", []byte("old,old,old\n")}), dir)
	require.NoError(t, err)
	_, err = Extract(buildZip(t, entry{"a.csv", []byte("new\n")}), dir)
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(b))
}

func TestExtractRejectsZipSlip(t *testing.T) {
	for _, name := range []string{"../evil.csv", "a/../../evil.csv", "/abs.csv"} {
		t.Run(name, func(t *testing.T) {
			parent := t.TempDir()
			dir := filepath.Join(parent, "work")
			_, err := Extract(buildZip(t, entry{name, []byte("x")}), dir)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafePath), "got %v", err)
			_, statErr := os.Stat(filepath.Join(parent, "evil.csv"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestExtractInvalidZip(t *testing.T) {
	_, err := Extract([]byte("definitely not a zip"), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, zip.ErrFormat)
}

func TestExtractSizeLimit(t *testing.T) {
	old := MaxExtractBytes
	MaxExtractBytes = 8
	defer func() { MaxExtractBytes = old }()

	_, err := Extract(buildZip(t, entry{"big.csv", bytes.Repeat([]byte("a"), 64)}), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchiveTooLarge)
}

func TestOpenCSVDecompresses(t *testing.T) {
	const body = "id,name\n1,alpha\n"
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(body))
	require.NoError(t, gw.Close())

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, _ = zw.Write([]byte(body))
	require.NoError(t, zw.Close())

	var xzb bytes.Buffer
	xw, err := xz.NewWriter(&xzb)
	require.NoError(t, err)
	_, _ = xw.Write([]byte(body))
	require.NoError(t, xw.Close())

	files := map[string][]byte{
		"plain.csv":    []byte(body),
		"gzip.csv.gz":  gz.Bytes(),
		"zstd.csv.zst": zs.Bytes(),
		"xz.csv.xz":    xzb.Bytes(),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	found, err := FindCSVFiles(dir)
	require.NoError(t, err)
	assert.Len(t, found, 4)

	for _, name := range found {
		rc, err := OpenCSV(dir, name)
		require.NoError(t, err, name)
		got, err := io.ReadAll(rc)
		require.NoError(t, err, name)
		require.NoError(t, rc.Close())
		assert.Equal(t, body, string(got), name)
	}
}

func TestDetectCompression(t *testing.T) {
	cases := map[string]struct {
		comp Compression
		ok   bool
	}{
		"a.csv":      {CompressionNone, true},
		"A.CSV.GZ":   {CompressionGZ, true},
		"a.csv.bz2":  {CompressionBZ2, true},
		"a.csv.xz":   {CompressionXZ, true},
		"a.csv.zst":  {CompressionZSTD, true},
		"a.tsv":      {CompressionNone, false},
		"a.csv.json": {CompressionNone, false},
	}
	for name, want := range cases {
		comp, ok := DetectCompression(name)
		assert.Equal(t, want.ok, ok, name)
		assert.Equal(t, want.comp, comp, name)
	}
}
