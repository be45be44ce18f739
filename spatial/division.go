// Package spatial loads the cell-to-region lookup ("spatial division") that
// scopes every CDR to a named region.
package spatial

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jalad-shrimali/cdr-sociometer/cdr"
)

var (
	ErrMalformedLine = errors.New("malformed spatial division line")
	ErrEmpty         = errors.New("spatial division maps no cells")
)

// Division maps cell identifiers to region names. It is read-only once
// built and safe to share between goroutines.
type Division struct {
	name    string
	regions map[string]string
}

// Name is the source file base name without extension, e.g. "aree_roma".
func (d *Division) Name() string { return d.name }

func (d *Division) Len() int { return len(d.regions) }

// Region returns the region of cell, if the cell is in scope.
func (d *Division) Region(cell string) (string, bool) {
	r, ok := d.regions[cell]
	return r, ok
}

// Regions lists the distinct region names, sorted.
func (d *Division) Regions() []string {
	seen := map[string]struct{}{}
	for _, r := range d.regions {
		seen[r] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func divisionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a division from path. Files ending in .db, .sqlite or .sqlite3
// are read as a SQLite cell database, anything else as "cell_id;region" text.
func Load(path string) (*Division, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spatial division: %w", err)
	}
	defer f.Close()
	return Parse(f, divisionName(path))
}

// Parse reads "cell_id;region_name" lines. Blank lines are ignored; any other
// line that does not hold exactly two non-empty fields fails the load. A
// repeated cell keeps its last region.
func Parse(r io.Reader, name string) (*Division, error) {
	d := &Division{name: name, regions: map[string]string{}}

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w %d: %d fields", ErrMalformedLine, n, len(parts))
		}
		cell, region := cdr.CleanCell(parts[0]), strings.TrimSpace(parts[1])
		if cell == "" || region == "" {
			return nil, fmt.Errorf("%w %d: empty cell or region", ErrMalformedLine, n)
		}
		d.regions[cell] = region
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read spatial division: %w", err)
	}
	if len(d.regions) == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

// LoadSQLite reads the cell_regions(cell_id, region) table of a read-only
// SQLite cell database.
func LoadSQLite(path string) (*Division, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open spatial division: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("cannot open cell DB at %s: %w", path, err)
	}
	defer db.Close()

	const q = `SELECT cell_id, region FROM cell_regions`
	rows, err := db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("query cell DB %s: %w", path, err)
	}
	defer rows.Close()

	d := &Division{name: divisionName(path), regions: map[string]string{}}
	n := 0
	for rows.Next() {
		n++
		var cell, region sql.NullString
		if err := rows.Scan(&cell, &region); err != nil {
			return nil, fmt.Errorf("scan cell DB row %d: %w", n, err)
		}
		c, r := cdr.CleanCell(cell.String), strings.TrimSpace(region.String)
		if c == "" || r == "" {
			return nil, fmt.Errorf("%w %d: empty cell or region", ErrMalformedLine, n)
		}
		d.regions[c] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cell DB %s: %w", path, err)
	}
	if len(d.regions) == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

// FromMap builds a division directly, mostly for tests and embedding callers.
func FromMap(name string, m map[string]string) *Division {
	d := &Division{name: name, regions: make(map[string]string, len(m))}
	for k, v := range m {
		d.regions[k] = v
	}
	return d
}
