package testrunner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

func TestResultStore_SaveNeverOverwrites(t *testing.T) {
	store := NewResultStore(t.TempDir())
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.Local)

	a := &models.TestBatch{Tier: models.TierSmoke, StartedAt: started}
	b := &models.TestBatch{Tier: models.TierSmoke, StartedAt: started}
	pathA, err := store.Save(a)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	pathB, err := store.Save(b)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if pathA == pathB {
		t.Error("batches started in the same second must get distinct files")
	}

	// Saving the same batch twice collides on its id and must fail.
	a.File = ""
	if _, err := store.Save(a); err == nil {
		t.Error("expected exclusive create to refuse an existing file")
	}
}

func TestResultStore_LoadBareArray(t *testing.T) {
	dir := t.TempDir()
	content := `[
  {"test_id": "SMOKE001", "test_name": "build", "test_type": "smoke", "passed": true, "duration_ms": 12, "error_message": null, "timestamp": "2024-03-01T09:30:00.123456"},
  {"test_id": "SMOKE002", "test_name": "deps", "test_type": "smoke", "passed": false, "duration_ms": 30000, "error_message": "Test timed out after 30 seconds", "timestamp": "2024-03-01T09:30:01"}
]`
	path := filepath.Join(dir, "smoke_20240301_093000.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write results: %v", err)
	}

	store := NewResultStore(dir)
	batch, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if batch.Tier != models.TierSmoke {
		t.Errorf("expected tier from file name, got %q", batch.Tier)
	}
	if len(batch.Results) != 2 || batch.Results[1].ErrorMessage == "" {
		t.Errorf("unexpected results %+v", batch.Results)
	}
	if batch.Results[0].Timestamp.IsZero() || batch.Results[1].Timestamp.IsZero() {
		t.Error("expected zone-less timestamps to parse")
	}
}

func TestResultStore_RecentOrderAndLimit(t *testing.T) {
	store := NewResultStore(t.TempDir())
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.Local)

	for i := 0; i < 4; i++ {
		b := &models.TestBatch{
			Tier:      models.TierIntegration,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Results:   []models.TestResult{{TestID: string(rune('A' + i)), Passed: i%2 == 0}},
		}
		if _, err := store.Save(b); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := store.Save(&models.TestBatch{Tier: models.TierSmoke, StartedAt: base}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	recent, err := store.Recent(models.TierIntegration, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(recent))
	}
	if recent[0].Results[0].TestID != "D" || recent[1].Results[0].TestID != "C" {
		t.Errorf("expected newest first, got %s then %s", recent[0].Results[0].TestID, recent[1].Results[0].TestID)
	}

	report, err := store.Report(2)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	integration := report.Tiers[models.TierIntegration]
	if integration.Batches != 2 || integration.TotalTests != 2 || integration.PassRate != "50.0%" {
		t.Errorf("unexpected integration summary %+v", integration)
	}
	if report.Tiers[models.TierSmoke].Batches != 1 {
		t.Errorf("expected one smoke batch, got %+v", report.Tiers[models.TierSmoke])
	}
}

func TestResultStore_MissingDirectory(t *testing.T) {
	store := NewResultStore(filepath.Join(t.TempDir(), "absent"))
	batches, err := store.Recent(models.TierSmoke, 5)
	if err != nil || len(batches) != 0 {
		t.Errorf("expected no batches and no error, got %v, %v", batches, err)
	}
}
