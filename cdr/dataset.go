package cdr

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/snappy"
)

const maxLineBytes = 1 << 20

// ReadStats counts what Scan saw.
type ReadStats struct {
	Lines     int
	Malformed int
}

// Add accumulates o into s.
func (s *ReadStats) Add(o ReadStats) {
	s.Lines += o.Lines
	s.Malformed += o.Malformed
}

// Files expands a dataset URI into the sorted list of files it names. The URI
// may be a single file, a directory (hidden and "_"-prefixed entries such as
// _SUCCESS markers are skipped) or a glob.
func Files(uri string) ([]string, error) {
	path := strings.TrimPrefix(uri, "file://")

	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("bad dataset glob %q: %w", uri, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("dataset glob %q matched no files", uri)
		}
		sort.Strings(matches)
		return matches, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", uri, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if p != path && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dataset %q: %w", uri, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset directory %q holds no files", uri)
	}
	sort.Strings(files)
	return files, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open returns a reader over path, decompressing .gz and snappy-framed
// (.sz, .snappy) files on the fly.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{f, zr}}, nil
	case ".sz", ".snappy":
		return &readCloser{Reader: snappy.NewReader(f), closers: []io.Closer{f}}, nil
	}
	return f, nil
}

// Scan parses every non-blank line of r. Malformed lines are counted and
// skipped; only I/O failures are returned.
func Scan(r io.Reader, fn func(Record)) (ReadStats, error) {
	var st ReadStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.Lines++
		rec, err := Parse(line)
		if err != nil {
			st.Malformed++
			continue
		}
		fn(rec)
	}
	return st, sc.Err()
}
