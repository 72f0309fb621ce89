package summary

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeStats(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name+"stats.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuild_MergesRuns(t *testing.T) {
	dir := t.TempDir()
	a := writeStats(t, dir, "ddr4", "cycles,bandwidth\n100000,12.5\n")
	b := writeStats(t, dir, "hmc", "cycles,bandwidth\n100000,40.1\n")

	table, err := Build([]Entry{{Name: "ddr4", StatsPath: a}, {Name: "hmc", StatsPath: b}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{
		{"config", "cycles", "bandwidth"},
		{"ddr4", "100000", "12.5"},
		{"hmc", "100000", "40.1"},
	}
	if diff := cmp.Diff(want, table.Records()); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}
	if len(table.Missing) != 0 {
		t.Errorf("Missing = %v, want none", table.Missing)
	}
}

func TestBuild_UnionOfColumns(t *testing.T) {
	dir := t.TempDir()
	a := writeStats(t, dir, "a", "cycles,reads\n10,3\n")
	b := writeStats(t, dir, "b", "cycles,writes,reads\n20,5,4\n")

	table, err := Build([]Entry{{Name: "a", StatsPath: a}, {Name: "b", StatsPath: b}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{
		{"config", "cycles", "reads", "writes"},
		{"a", "10", "3", ""},
		{"b", "20", "4", "5"},
	}
	if diff := cmp.Diff(want, table.Records()); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_LastRowWins(t *testing.T) {
	dir := t.TempDir()
	a := writeStats(t, dir, "epochs", "epoch,hits\n1,10\n2,25\n3,41\n")

	table, err := Build([]Entry{{Name: "epochs", StatsPath: a}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	row, ok := table.Row("epochs")
	if !ok {
		t.Fatal("row for epochs missing")
	}
	if row["epoch"] != "3" || row["hits"] != "41" {
		t.Errorf("row = %v, want final epoch values", row)
	}
}

func TestBuild_MissingStats(t *testing.T) {
	dir := t.TempDir()
	a := writeStats(t, dir, "ok", "cycles\n1\n")

	table, err := Build([]Entry{
		{Name: "ok", StatsPath: a},
		{Name: "crashed", StatsPath: filepath.Join(dir, "crashedstats.csv")},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff([]string{"crashed"}, table.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if len(table.Rows) != 1 {
		t.Errorf("len(Rows) = %d, want 1", len(table.Rows))
	}
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"header only", "cycles,bandwidth\n"},
		{"ragged", "cycles,bandwidth\n1,2,3\n"},
		{"duplicate column", "reads,reads\n1,2\n"},
		{"duplicate after renaming the index", "config,config_stats\na,b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeStats(t, t.TempDir(), "bad", tt.body)
			_, err := Build([]Entry{{Name: "bad", StatsPath: path}})
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestBuild_IndexColumnClash(t *testing.T) {
	path := writeStats(t, t.TempDir(), "x", "config,cycles\nfrom-sim,5\n")
	table, err := Build([]Entry{{Name: "x", StatsPath: path}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff([]string{"config_stats", "cycles"}, table.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Empty(t *testing.T) {
	table, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "config\n" {
		t.Errorf("Write = %q, want header only", buf.String())
	}
}

func TestWriteFile_ReadBack(t *testing.T) {
	dir := t.TempDir()
	a := writeStats(t, dir, "a", "cycles,note\n10,\"has, comma\"\n")

	table, err := Build([]Entry{{Name: "a", StatsPath: a}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := filepath.Join(dir, "summary.csv")
	if err := table.WriteFile(out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "config,cycles,note\na,10,\"has, comma\"\n" {
		t.Errorf("summary = %q", data)
	}

	got, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(table.Records(), got.Records()); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}

	// No temporary files are left next to the summary.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "summary.csv" && e.Name() != "astats.csv" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestRead_NotASummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(path, []byte("cycles\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for file without index column")
	}
}
