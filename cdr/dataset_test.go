package cdr

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `u1;x;x;2016-01-02;10:15:00;42;x;x;x;c1;c2;VOICE
garbage line

u2;x;x;2016-01-03;01:00:00;7;x;x;x;c2;c2;SMS
`

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestScan_CountsMalformed(t *testing.T) {
	var got []Record
	st, err := Scan(strings.NewReader(sample), func(r Record) { got = append(got, r) })
	require.NoError(t, err)

	assert.Equal(t, 3, st.Lines)
	assert.Equal(t, 1, st.Malformed)
	require.Len(t, got, 2)
	assert.Equal(t, "u2", got[1].UserID)
}

func TestOpen_Compressed(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	writeFile(t, filepath.Join(dir, "part-0.gz"), gz.Bytes())

	var sz bytes.Buffer
	sw := snappy.NewBufferedWriter(&sz)
	_, err = sw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, sw.Close())
	writeFile(t, filepath.Join(dir, "part-1.sz"), sz.Bytes())

	var total ReadStats
	for _, name := range []string{"part-0.gz", "part-1.sz"} {
		rc, err := Open(filepath.Join(dir, name))
		require.NoError(t, err, name)

		var recs []Record
		st, err := Scan(rc, func(r Record) { recs = append(recs, r) })
		require.NoError(t, err, name)
		require.NoError(t, rc.Close(), name)
		assert.Len(t, recs, 2, name)
		assert.Equal(t, 1, st.Malformed, name)
		total.Add(st)
	}
	assert.Equal(t, ReadStats{Lines: 6, Malformed: 2}, total)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), []byte(sample))
	writeFile(t, filepath.Join(dir, "a.txt"), []byte(sample))
	writeFile(t, filepath.Join(dir, "_SUCCESS"), nil)
	writeFile(t, filepath.Join(dir, ".hidden", "c.txt"), []byte(sample))

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}, files)

	files, err = Files("file://" + filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.txt")}, files)

	files, err = Files(filepath.Join(dir, "*.txt"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = Files(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	_, err = Files(filepath.Join(dir, "*.csv"))
	assert.Error(t, err)
}
