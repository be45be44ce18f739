package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/jalad-shrimali/cdr-sociometer/profile"
)

// XLSXSink writes <dir>/<name>.xlsx with a "profiles" sheet (one row per
// basket) and a "regions" summary sheet.
type XLSXSink struct {
	dir string
}

func NewXLSXSink(dir string) *XLSXSink { return &XLSXSink{dir: dir} }

// slotLabel names a vector slot, e.g. "w2_we_s1".
func slotLabel(i int) string {
	per := profile.DayKinds * profile.SlicesPerDay
	kind := "wd"
	if (i%per)/profile.SlicesPerDay == 1 {
		kind = "we"
	}
	return fmt.Sprintf("w%d_%s_s%d", i/per+1, kind, i%profile.SlicesPerDay)
}

func (s *XLSXSink) Write(ctx context.Context, name string, baskets []profile.Basket) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, err
	}
	out := filepath.Join(s.dir, name+".xlsx")
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("replace %s: %w", out, err)
	}

	width := profile.VectorLen(4)
	if len(baskets) > 0 {
		width = len(baskets[0].Vector)
	}

	header := []interface{}{"region", "user_id"}
	for i := 0; i < width; i++ {
		header = append(header, slotLabel(i))
	}
	report := [][]interface{}{header}

	type agg struct {
		users int
		total float64
	}
	regions := map[string]*agg{}

	for _, b := range baskets {
		row := make([]interface{}, 0, 2+len(b.Vector))
		row = append(row, b.Region, b.UserID)
		a := regions[b.Region]
		if a == nil {
			a = &agg{}
			regions[b.Region] = a
		}
		a.users++
		for _, v := range b.Vector {
			row = append(row, v)
			a.total += v
		}
		report = append(report, row)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(regions))
	for r := range regions {
		names = append(names, r)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := regions[names[i]], regions[names[j]]
		if a.users != b.users {
			return a.users > b.users
		}
		return names[i] < names[j]
	})

	summary := [][]interface{}{{"region", "users", "total_intensity", "mean_intensity"}}
	for _, r := range names {
		a := regions[r]
		summary = append(summary, []interface{}{r, a.users, a.total, a.total / float64(a.users)})
	}

	x := excelize.NewFile()
	defer x.Close()

	add := func(sheet string, rows [][]interface{}) error {
		idx, err := x.NewSheet(sheet)
		if err != nil {
			return err
		}
		for r, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := x.SetSheetRow(sheet, cell, &row); err != nil {
				return err
			}
		}
		if sheet == "profiles" {
			x.SetActiveSheet(idx)
		}
		return nil
	}
	if err := add("profiles", report); err != nil {
		return nil, fmt.Errorf("xlsx profiles sheet: %w", err)
	}
	if err := add("regions", summary); err != nil {
		return nil, fmt.Errorf("xlsx regions sheet: %w", err)
	}
	x.DeleteSheet("Sheet1")

	if err := x.SaveAs(out); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

func (s *XLSXSink) Close() error { return nil }
