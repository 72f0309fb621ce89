// Package summary merges per-run statistics files into one table indexed
// by configuration name.
package summary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// IndexColumn is the header of the configuration name column.
const IndexColumn = "config"

// ErrMalformed is returned for statistics files that cannot be merged.
var ErrMalformed = errors.New("malformed statistics file")

// Entry names one run's statistics file.
type Entry struct {
	Name      string // configuration name, the table index
	StatsPath string
}

// Row is one run in the summary table.
type Row struct {
	Name   string
	Values map[string]string
}

// Table is the merged summary of a batch.
type Table struct {
	Columns []string // union of all statistics headers, in first-seen order
	Rows    []Row
	Missing []string // names of runs whose statistics file does not exist
}

// Build reads each entry's statistics file and merges them. The last data
// row of a file is taken as the run's final statistics. Entries whose file
// does not exist are listed in Table.Missing and get no row.
func Build(entries []Entry) (*Table, error) {
	t := &Table{}
	known := make(map[string]bool)

	for _, e := range entries {
		header, record, err := readLastRecord(e.StatsPath)
		if errors.Is(err, fs.ErrNotExist) {
			t.Missing = append(t.Missing, e.Name)
			continue
		}
		if err != nil {
			return nil, err
		}

		values := make(map[string]string, len(header))
		for i, col := range header {
			if col == IndexColumn {
				// The index column is ours; a stats column of the same
				// name would shadow it.
				col = IndexColumn + "_stats"
			}
			if _, dup := values[col]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate column %q", ErrMalformed, e.StatsPath, col)
			}
			if !known[col] {
				known[col] = true
				t.Columns = append(t.Columns, col)
			}
			values[col] = record[i]
		}
		t.Rows = append(t.Rows, Row{Name: e.Name, Values: values})
	}

	return t, nil
}

func readLastRecord(path string) ([]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("opening statistics %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: %s: empty file", ErrMalformed, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	var last []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
		last = rec
	}
	if last == nil {
		return nil, nil, fmt.Errorf("%w: %s: no data rows", ErrMalformed, path)
	}
	return header, last, nil
}

// Row returns the values recorded for the named configuration.
func (t *Table) Row(name string) (map[string]string, bool) {
	for _, r := range t.Rows {
		if r.Name == name {
			return r.Values, true
		}
	}
	return nil, false
}

// Records returns the table as CSV records, header first.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string{IndexColumn}, t.Columns...))
	for _, r := range t.Rows {
		rec := make([]string, 0, len(t.Columns)+1)
		rec = append(rec, r.Name)
		for _, col := range t.Columns {
			rec = append(rec, r.Values[col])
		}
		out = append(out, rec)
	}
	return out
}

// Write writes the table as CSV to w.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// WriteFile writes the table to path, replacing any previous file
// atomically.
func (t *Table) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating summary %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := t.Write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}

// Read loads a summary table previously written with Write.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening summary %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading summary %s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != IndexColumn {
		return nil, fmt.Errorf("reading summary %s: missing %q index column", path, IndexColumn)
	}

	t := &Table{Columns: records[0][1:]}
	for _, rec := range records[1:] {
		values := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			values[col] = rec[i+1]
		}
		t.Rows = append(t.Rows, Row{Name: rec[0], Values: values})
	}
	return t, nil
}
