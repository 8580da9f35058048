// Package catalogcsv reads the property catalog from CSV and exports
// recommendation runs back to CSV.
package catalogcsv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reader yields CSV rows keyed by their (lowercased, trimmed) header.
type Reader struct {
	open func() (io.ReadCloser, error)
	name string
}

// NewFileReader reads path on every call, so a reload picks up edits.
func NewFileReader(path string) *Reader {
	return &Reader{
		open: func() (io.ReadCloser, error) { return os.Open(path) },
		name: path,
	}
}

// NewReader reads from a fixed in-memory payload; mostly for tests and stdin.
func NewReader(data string) *Reader {
	return &Reader{
		open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(data)), nil },
		name: "inline",
	}
}

// ReadRecords parses the whole file. Short rows are padded with empty
// values and extra cells are dropped.
func (r *Reader) ReadRecords(ctx context.Context) ([]map[string]string, error) {
	f, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", r.name, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", r.name, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var out []map[string]string
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", r.name, line, err)
		}
		if blank(row) {
			continue
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
