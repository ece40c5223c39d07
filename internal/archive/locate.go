package archive

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies how a located CSV file is stored.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGZ
	CompressionBZ2
	CompressionXZ
	CompressionZSTD
)

var csvSuffixes = []struct {
	suffix string
	comp   Compression
}{
	{".csv", CompressionNone},
	{".csv.gz", CompressionGZ},
	{".csv.bz2", CompressionBZ2},
	{".csv.xz", CompressionXZ},
	{".csv.zst", CompressionZSTD},
}

// DetectCompression returns the compression for a CSV file name and whether
// the name is a CSV at all.
func DetectCompression(name string) (Compression, bool) {
	lower := strings.ToLower(name)
	for _, s := range csvSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.comp, true
		}
	}
	return CompressionNone, false
}

// FindCSVFiles lists the CSV files directly inside dir, sorted by name.
// Hidden files and macOS resource forks are ignored.
func FindCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "._") {
			continue
		}
		if _, ok := DetectCompression(name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// OpenCSV opens dir/name and wraps it with a decompressor chosen by extension.
func OpenCSV(dir, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	comp, _ := DetectCompression(name)
	r, closeFn, err := decompress(f, comp)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &compositeReader{Reader: r, closers: []func() error{closeFn, f.Close}}, nil
}

func decompress(r io.Reader, comp Compression) (io.Reader, func() error, error) {
	noop := func() error { return nil }
	switch comp {
	case CompressionNone:
		return r, noop, nil
	case CompressionGZ:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, gz.Close, nil
	case CompressionBZ2:
		return bzip2.NewReader(r), noop, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xr, noop, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec, func() error { dec.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression: %d", comp)
	}
}

type compositeReader struct {
	io.Reader
	closers []func() error
}

func (c *compositeReader) Close() error {
	var first error
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
