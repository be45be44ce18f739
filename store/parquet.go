package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/jalad-shrimali/cdr-sociometer/profile"
)

const partFile = "part-00000.parquet"

var basketSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "region", Type: arrow.BinaryTypes.String},
		{Name: "user_id", Type: arrow.BinaryTypes.String},
		{Name: "vector", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	},
	nil,
)

// ParquetSink writes each dataset as a directory <dir>/<name>/ holding one
// snappy-compressed parquet part.
type ParquetSink struct {
	dir string
}

func NewParquetSink(dir string) *ParquetSink { return &ParquetSink{dir: dir} }

func (s *ParquetSink) Write(ctx context.Context, name string, baskets []profile.Basket) ([]string, error) {
	target := filepath.Join(s.dir, name)
	if err := os.RemoveAll(target); err != nil {
		return nil, fmt.Errorf("replace %s: %w", target, err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(target, partFile)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	writer, err := pqarrow.NewFileWriter(basketSchema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	rec := basketRecord(baskets)
	defer rec.Release()

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write to parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return []string{path}, nil
}

func (s *ParquetSink) Close() error { return nil }

func basketRecord(baskets []profile.Basket) arrow.Record {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), basketSchema)
	defer b.Release()

	regionB := b.Field(0).(*array.StringBuilder)
	userB := b.Field(1).(*array.StringBuilder)
	vecB := b.Field(2).(*array.ListBuilder)
	valB := vecB.ValueBuilder().(*array.Float64Builder)

	for _, bk := range baskets {
		regionB.Append(bk.Region)
		userB.Append(bk.UserID)
		vecB.Append(true)
		valB.AppendValues(bk.Vector, nil)
	}
	return b.NewRecord()
}

// ReadParquet loads the baskets of a part file written by ParquetSink.
func ReadParquet(ctx context.Context, path string) ([]profile.Basket, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 1024}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	table, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer table.Release()

	tr := array.NewTableReader(table, 1024)
	defer tr.Release()

	out := make([]profile.Basket, 0, table.NumRows())
	for tr.Next() {
		rec := tr.Record()
		regions, ok1 := rec.Column(0).(*array.String)
		users, ok2 := rec.Column(1).(*array.String)
		vectors, ok3 := rec.Column(2).(*array.List)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("parquet %s: unexpected column types", path)
		}
		values := vectors.ListValues().(*array.Float64)
		for i := 0; i < int(rec.NumRows()); i++ {
			start, end := vectors.ValueOffsets(i)
			vec := make([]float64, end-start)
			for j := start; j < end; j++ {
				vec[j-start] = values.Value(int(j))
			}
			out = append(out, profile.Basket{Region: regions.Value(i), UserID: users.Value(i), Vector: vec})
		}
	}
	return out, nil
}
