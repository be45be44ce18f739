// Package cdr parses semicolon-delimited call-detail records and reads them
// from plain, gzip or snappy-framed dataset files.
package cdr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

/* ──────────── fixed 12-column layout ──────────── */

// user_id;_;_;start_date;start_time;duration;_;_;_;start_cell;end_cell;record_type
const (
	colUser      = 0
	colDate      = 3
	colTime      = 4
	colDuration  = 5
	colStartCell = 9
	colEndCell   = 10
	colType      = 11

	fieldCount = 12
)

const (
	DateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// ErrMalformed marks a line the parser could not turn into a Record.
var ErrMalformed = errors.New("malformed cdr line")

// Record is one call-detail record. Only UserID, Start and StartCell feed
// the profiling pipeline.
type Record struct {
	UserID    string
	Start     time.Time
	Duration  int
	StartCell string
	EndCell   string
	Type      string
}

// CleanCell trims quotes and blanks and strips the hyphens some exports put
// inside CGI identifiers.
func CleanCell(raw string) string {
	return strings.ReplaceAll(strings.Trim(raw, `"' `), "-", "")
}

func field(rec []string, i int) string { return strings.Trim(rec[i], `"' `) }

// Parse validates a single line and returns its Record.
func Parse(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	rec := strings.Split(line, ";")
	if len(rec) < fieldCount {
		return Record{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformed, len(rec), fieldCount)
	}

	user := field(rec, colUser)
	if user == "" {
		return Record{}, fmt.Errorf("%w: empty user id", ErrMalformed)
	}

	start, err := parseStart(field(rec, colDate), field(rec, colTime))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cell := CleanCell(rec[colStartCell])
	if cell == "" {
		return Record{}, fmt.Errorf("%w: empty start cell", ErrMalformed)
	}

	dur := 0
	if d := field(rec, colDuration); d != "" {
		if dur, err = strconv.Atoi(d); err != nil {
			f, ferr := strconv.ParseFloat(d, 64)
			if ferr != nil || f < 0 {
				return Record{}, fmt.Errorf("%w: duration %q", ErrMalformed, d)
			}
			dur = int(f)
		}
		if dur < 0 {
			return Record{}, fmt.Errorf("%w: negative duration %d", ErrMalformed, dur)
		}
	}

	return Record{
		UserID:    user,
		Start:     start,
		Duration:  dur,
		StartCell: cell,
		EndCell:   CleanCell(rec[colEndCell]),
		Type:      field(rec, colType),
	}, nil
}

// parseStart accepts a start_time that is either a bare clock ("15:04:05")
// completed by start_date, or a full timestamp on its own.
func parseStart(date, clock string) (time.Time, error) {
	if len(clock) >= len(timestampLayout) && strings.Contains(clock, "-") {
		return time.Parse(timestampLayout, clock[:len(timestampLayout)])
	}
	if date == "" || clock == "" {
		return time.Time{}, errors.New("missing start date or time")
	}
	return time.Parse(timestampLayout, date+" "+clock)
}

// Date is the calendar day of the call start.
func (r Record) Date() time.Time {
	y, m, d := r.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
