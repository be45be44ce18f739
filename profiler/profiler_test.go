package profiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalad-shrimali/cdr-sociometer/engine"
	"github.com/jalad-shrimali/cdr-sociometer/logging"
	"github.com/jalad-shrimali/cdr-sociometer/profile"
	"github.com/jalad-shrimali/cdr-sociometer/store"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

var cdrLines = []string{
	"u1;;;2016-01-09;10:00:00;30;;;;c1;c1;VOICE",
	"u1;;;2016-01-09;11:30:00;12;;;;c1;c1;SMS",
	"u1;;;2016-01-12;20:00:00;60;;;;c2;c2;VOICE",
	"u2;;;2016-01-12;09:00:00;60;;;;cx;cx;VOICE",
	"u2;;;2015-12-30;09:00:00;60;;;;c1;c1;VOICE",
	"garbage",
	"u3;;;2016-02-03;09:00:00;60;;;;c1;c1;VOICE",
}

func writeInputs(t *testing.T) (dataset, division string) {
	t.Helper()
	dir := t.TempDir()

	dataset = filepath.Join(dir, "cdr")
	require.NoError(t, os.MkdirAll(dataset, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataset, "part-0.csv"), []byte(strings.Join(cdrLines[:4], "\n")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataset, "part-1.csv"), []byte(strings.Join(cdrLines[4:], "\n")), 0o644))

	division = filepath.Join(dir, "aree.txt")
	require.NoError(t, os.WriteFile(division, []byte("c1;R\nc2;S\n"), 0o644))
	return dataset, division
}

func options(t *testing.T, dataset, division, start, end string) Options {
	t.Helper()
	s, err := window.ParseDate(start)
	require.NoError(t, err)
	e, err := window.ParseDate(end)
	require.NoError(t, err)
	return Options{Dataset: dataset, Division: division, Start: s, End: e}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dataset, division := writeInputs(t)
	out := t.TempDir()

	r := New(engine.New(2, 3), store.NewParquetSink(out), logging.Discard())
	res, err := r.Run(ctx, options(t, dataset, division, "2016-01-04", "2016-02-07"))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []window.Week{{Year: 2016, Week: 5}}, res.Skipped)
	assert.Equal(t, Stats{Files: 2, Lines: 7, Malformed: 1, UnknownCell: 1, OutOfRange: 1, Attributed: 4}, res.Stats)

	require.Len(t, res.Windows, 1)
	wr := res.Windows[0]
	assert.Equal(t, "profiles-2016_1-2016_4", wr.Name)
	assert.Equal(t, 3, wr.Records)
	assert.Equal(t, 2, wr.Presences)
	assert.Equal(t, 2, wr.Observations)
	assert.Equal(t, 1, wr.Users)
	assert.Equal(t, 2, wr.Baskets)
	require.Len(t, wr.Locations, 1)

	got, err := store.ReadParquet(ctx, wr.Locations[0])
	require.NoError(t, err)
	require.Len(t, got, 2)

	r0 := make([]float64, 24)
	r0[4] = 0.5
	s0 := make([]float64, 24)
	s0[8] = 0.2
	assert.Equal(t, []profile.Basket{
		{Region: "R", UserID: "u1", Vector: r0},
		{Region: "S", UserID: "u1", Vector: s0},
	}, got)
}

func TestRun_Logs(t *testing.T) {
	dataset, division := writeInputs(t)
	var buf bytes.Buffer
	logger, err := logging.New("info", "text", &buf)
	require.NoError(t, err)

	_, err = New(engine.New(2, 4), &recordingSink{}, logger).Run(context.Background(), options(t, dataset, division, "2016-01-04", "2016-02-07"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "regions=2")
	assert.Contains(t, out, "partitions=4")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "weeks=[2016_5]")
	assert.Contains(t, out, "window=profiles-2016_1-2016_4 records=3 presences=2 observations=2")
	assert.Contains(t, out, "dropped_malformed=1")
}

func TestRun_DivisionPrefix(t *testing.T) {
	dataset, division := writeInputs(t)
	opts := options(t, dataset, division, "2016-01-04", "2016-01-31")
	opts.DivisionPrefix = true

	res, err := New(engine.New(1, 1), store.NewParquetSink(t.TempDir()), logging.Discard()).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res.Windows, 1)
	assert.Equal(t, "profiles-aree-2016_1-2016_4", res.Windows[0].Name)
	assert.Empty(t, res.Skipped)
}

func TestRun_NoCompleteWindow(t *testing.T) {
	dataset, division := writeInputs(t)
	sink := &recordingSink{}

	res, err := New(engine.New(1, 1), sink, logging.Discard()).Run(context.Background(), options(t, dataset, division, "2016-01-04", "2016-01-20"))
	require.NoError(t, err)
	assert.Empty(t, res.Windows)
	assert.Len(t, res.Skipped, 3)
	assert.Empty(t, sink.names)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	dataset, division := writeInputs(t)
	r := New(engine.New(1, 1), &recordingSink{}, logging.Discard())

	_, err := r.Run(ctx, options(t, dataset, division, "2016-02-01", "2016-01-01"))
	assert.ErrorIs(t, err, window.ErrInvalidRange)

	_, err = r.Run(ctx, options(t, dataset, filepath.Join(t.TempDir(), "missing.txt"), "2016-01-04", "2016-01-31"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = r.Run(ctx, options(t, filepath.Join(t.TempDir(), "none-*.csv"), division, "2016-01-04", "2016-01-31"))
	assert.Error(t, err)

	failing := New(engine.New(1, 1), &recordingSink{err: errors.New("disk full")}, logging.Discard())
	_, err = failing.Run(ctx, options(t, dataset, division, "2016-01-04", "2016-01-31"))
	assert.ErrorContains(t, err, "disk full")
}

type recordingSink struct {
	names []string
	err   error
}

func (s *recordingSink) Write(_ context.Context, name string, _ []profile.Basket) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.names = append(s.names, name)
	return []string{name}, nil
}

func (s *recordingSink) Close() error { return nil }
