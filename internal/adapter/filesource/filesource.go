// Package filesource exposes raw Purple Air exports on local disk as
// domain.FileRef values. Gzipped exports are decompressed transparently.
package filesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/klauspost/pgzip"
)

const gzipBlockSize = 256 * 1024

// File is a raw export on disk.
type File struct {
	path string
}

// NewFile wraps path as a file reference.
func NewFile(path string) File { return File{path: path} }

// Name returns the base name, which carries the export's identity.
func (f File) Name() string { return filepath.Base(f.path) }

// Path returns the full path on disk.
func (f File) Path() string { return f.path }

// Open returns the decompressed contents of the file.
func (f File) Open() (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(f.path), ".gz") {
		return fh, nil
	}
	gz, err := pgzip.NewReaderN(fh, gzipBlockSize, runtime.NumCPU())
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("gzip %s: %w", f.Name(), err)
	}
	return &gzipFile{Reader: gz, file: fh}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}

// Discover returns the regular files in dir matching pattern, sorted by name.
func Discover(dir, pattern string) ([]File, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("file pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			files = append(files, NewFile(filepath.Join(dir, e.Name())))
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	return files, nil
}

// Dir is a data directory scanned for exports matching Pattern.
// It implements pipeline.Extractor.
type Dir struct {
	Path    string
	Pattern string
}

// Extract lists the directory's exports.
func (d Dir) Extract(ctx context.Context) ([]domain.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := Discover(d.Path, d.Pattern)
	if err != nil {
		return nil, err
	}
	refs := make([]domain.FileRef, len(files))
	for i, f := range files {
		refs[i] = f
	}
	return refs, nil
}
