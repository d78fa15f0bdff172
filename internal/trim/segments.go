package trim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Segment is one row of a trimming table: the recording named Name is cut
// down to [Start, End).
type Segment struct {
	Name  string
	Start time.Duration
	End   time.Duration
}

// Base returns the source recording name, which is Name up to its last
// underscore.
func (s Segment) Base() string {
	if i := strings.LastIndex(s.Name, "_"); i >= 0 {
		return s.Name[:i]
	}
	return s.Name
}

// ReadSegments parses "name,start_sec,end_sec" rows. Rows whose times do not
// parse, including a header row, are skipped and counted.
func ReadSegments(r io.Reader) ([]Segment, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		segments []Segment
		skipped  int
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return segments, skipped, fmt.Errorf("read csv: %w", err)
		}
		seg, ok := parseRow(record)
		if !ok {
			skipped++
			continue
		}
		segments = append(segments, seg)
	}
	return segments, skipped, nil
}

func parseRow(record []string) (Segment, bool) {
	if len(record) < 3 {
		return Segment{}, false
	}
	name := strings.TrimSpace(record[0])
	start, err1 := parseSeconds(record[1])
	end, err2 := parseSeconds(record[2])
	if name == "" || err1 != nil || err2 != nil {
		return Segment{}, false
	}
	return Segment{Name: name, Start: start, End: end}, true
}

func parseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return time.Duration(math.Round(v * float64(time.Second))), nil
}
