package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleResult(id string) *BatchResult {
	return &BatchResult{
		ID:         id,
		Executable: "/opt/sim/dramsim",
		OutputDir:  "/tmp/out",
		CPUType:    "random",
		Cycles:     1000,
		StartedAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Jobs: []JobResult{
			{Name: "ddr4", Status: Done},
			{Name: "hmc", Status: Failed, ExitCode: 2},
			{Name: "hbm", Status: Done},
		},
	}
}

func TestCountsAndOK(t *testing.T) {
	r := sampleResult("b1")
	c := r.Counts()
	if c[Done] != 2 || c[Failed] != 1 {
		t.Errorf("Counts = %v, want 2 done, 1 failed", c)
	}
	if r.OK() {
		t.Error("OK() = true with a failed job")
	}
	r.Jobs = r.Jobs[:1]
	if !r.OK() {
		t.Error("OK() = false with only done jobs")
	}
}

func TestByName(t *testing.T) {
	r := sampleResult("b1")
	j, err := ByName(r, "hmc")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if j.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", j.ExitCode)
	}
	if _, err := ByName(r, "nope"); err == nil {
		t.Error("expected error for unknown config")
	}
}

func TestByStatus(t *testing.T) {
	r := sampleResult("b1")
	done := ByStatus(r, Done)
	if len(done) != 2 || done[0].Name != "ddr4" || done[1].Name != "hbm" {
		t.Errorf("ByStatus(done) = %v", done)
	}
	if got := ByStatus(r, Skipped); got != nil {
		t.Errorf("ByStatus(skipped) = %v, want nil", got)
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	s := NewDiskStore(dir)

	if err := s.Save(sampleResult("b1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b1.json")); err != nil {
		t.Fatalf("result file not written: %v", err)
	}

	got, err := s.Load("b1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Executable != "/opt/sim/dramsim" || len(got.Jobs) != 3 {
		t.Errorf("Load = %+v", got)
	}
	if !got.StartedAt.Equal(sampleResult("b1").StartedAt) {
		t.Errorf("StartedAt = %v", got.StartedAt)
	}
}

func TestDiskStore_TempDir(t *testing.T) {
	s := NewDiskStore("")
	if err := s.Save(sampleResult("b2")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(s.Dir()) })
	if s.Dir() == "" {
		t.Fatal("Dir() empty after Save")
	}
}

func TestDiskStore_InvalidID(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	for _, id := range []string{"", "..", "../escape", "a/b"} {
		if _, err := s.Load(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidID", id, err)
		}
		if err := s.Save(sampleResult(id)); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestDiskStore_NotFound(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("b9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_SaveReplaces(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir)

	first := sampleResult("b1")
	if err := s.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := sampleResult("b1")
	second.Jobs = second.Jobs[:1]
	if err := s.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("b1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Jobs) != 1 {
		t.Errorf("len(Jobs) = %d, want the replaced document's 1", len(got.Jobs))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "b1.json" {
		t.Errorf("store directory holds %v, want only b1.json", entries)
	}
}

type countingStore struct {
	saved  map[string]*BatchResult
	loads  int
	failOn string
}

func (c *countingStore) Save(r *BatchResult) error {
	if c.saved == nil {
		c.saved = make(map[string]*BatchResult)
	}
	c.saved[r.ID] = r
	return nil
}

func (c *countingStore) Load(id string) (*BatchResult, error) {
	c.loads++
	if r, ok := c.saved[id]; ok && id != c.failOn {
		return r, nil
	}
	return nil, errors.New("not found")
}

func TestLRUStore_EvictsOldest(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(sampleResult(id)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	recent := s.Recent()
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("Recent = %v, want [c b]", ids(recent))
	}

	// "a" was evicted and must come from the backing store.
	if _, err := s.Load("a"); err != nil {
		t.Fatalf("Load(a): %v", err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
	if got := ids(s.Recent()); got[0] != "a" {
		t.Errorf("Recent after reload = %v, want a first", got)
	}

	// Cached entries do not hit the backing store.
	if _, err := s.Load("a"); err != nil {
		t.Fatalf("Load(a): %v", err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want still 1", back.loads)
	}
}

func TestLRUStore_Miss(t *testing.T) {
	s := NewLRUStore(0, &countingStore{})
	if _, err := s.Load("missing"); err == nil {
		t.Fatal("expected error for unknown batch")
	}
}

func ids(rs []*BatchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
