// Package store writes the per-window basket datasets. Every sink replaces
// whatever a previous run left under the same dataset name.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jalad-shrimali/cdr-sociometer/profile"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

// Sink persists one named basket dataset and reports where it went.
type Sink interface {
	Write(ctx context.Context, name string, baskets []profile.Basket) ([]string, error)
	Close() error
}

type Options struct {
	Dir        string
	Formats    []string
	SQLitePath string
}

// DatasetName is "profiles-<start_week>-<end_week>", with the spatial
// division name inserted after "profiles-" when division is set.
func DatasetName(division string, w window.Window) string {
	if division == "" {
		return "profiles-" + w.Name()
	}
	return "profiles-" + division + "-" + w.Name()
}

// Open builds one sink per requested format.
func Open(opts Options) (Sink, error) {
	var m multi
	for _, f := range opts.Formats {
		var (
			s   Sink
			err error
		)
		switch f {
		case "parquet":
			s = NewParquetSink(opts.Dir)
		case "xlsx":
			s = NewXLSXSink(opts.Dir)
		case "sqlite":
			s, err = OpenSQLiteSink(opts.SQLitePath)
		default:
			err = fmt.Errorf("unknown output format %q", f)
		}
		if err != nil {
			m.Close()
			return nil, err
		}
		m = append(m, s)
	}
	if len(m) == 1 {
		return m[0], nil
	}
	return m, nil
}

type multi []Sink

func (m multi) Write(ctx context.Context, name string, baskets []profile.Basket) ([]string, error) {
	var out []string
	for _, s := range m {
		locs, err := s.Write(ctx, name, baskets)
		if err != nil {
			return out, err
		}
		out = append(out, locs...)
	}
	return out, nil
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
