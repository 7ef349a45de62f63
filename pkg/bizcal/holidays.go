package bizcal

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type holidayEntry struct {
	Date string `toml:"date"`
	Name string `toml:"name,omitempty"`
}

type holidayFile struct {
	Holiday []holidayEntry `toml:"holiday"`
}

// ParseHolidaysTOML reads a document of the form
//
//	[[holiday]]
//	date = "2026-09-18"
//	name = "Fiestas Patrias"
func ParseHolidaysTOML(data []byte) ([]Holiday, error) {
	var doc holidayFile
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("decode holidays: %w", err)
	}
	out := make([]Holiday, 0, len(doc.Holiday))
	for i, h := range doc.Holiday {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(h.Date))
		if err != nil {
			return nil, fmt.Errorf("holiday #%d: invalid date %q: %w", i+1, h.Date, err)
		}
		out = append(out, Holiday{Date: d, Name: strings.TrimSpace(h.Name)})
	}
	return out, nil
}

func LoadHolidaysTOML(path string) ([]Holiday, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holidays file: %w", err)
	}
	return ParseHolidaysTOML(data)
}

// Load builds a Calendar from path; an empty path yields a weekends-only calendar.
func Load(path string) (*Calendar, error) {
	if strings.TrimSpace(path) == "" {
		return New(), nil
	}
	holidays, err := LoadHolidaysTOML(path)
	if err != nil {
		return nil, err
	}
	return New(holidays...), nil
}

// WriteHolidaysTOML encodes holidays sorted by date in the format ParseHolidaysTOML reads.
func WriteHolidaysTOML(w io.Writer, holidays []Holiday) error {
	sorted := append([]Holiday(nil), holidays...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	doc := holidayFile{Holiday: make([]holidayEntry, 0, len(sorted))}
	for _, h := range sorted {
		doc.Holiday = append(doc.Holiday, holidayEntry{Date: Date(h.Date).Format(time.DateOnly), Name: h.Name})
	}
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode holidays: %w", err)
	}
	return nil
}
