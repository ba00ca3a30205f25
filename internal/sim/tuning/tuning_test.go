package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("map_size: 20\nmax_turns: 300\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.MapSize != 20 || r.MaxTurns != 300 {
		t.Fatalf("overlay not applied: %+v", r)
	}
	if r.CostWarrior != 100 || r.BaseDamage != 15 {
		t.Fatalf("defaults lost: %+v", r)
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if r.MapSize != Default().MapSize {
		t.Fatalf("defaults not returned alongside error")
	}
}

func TestDigest_StableAndSensitive(t *testing.T) {
	a := Default()
	b := Default()
	if a.Digest() == "" || a.Digest() != b.Digest() {
		t.Fatalf("digest not stable")
	}
	b.CostWarrior = 120
	if a.Digest() == b.Digest() {
		t.Fatalf("digest ignores rule change")
	}
}
