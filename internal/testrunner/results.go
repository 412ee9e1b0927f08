package testrunner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// resultTimeLayout is the timestamp embedded in result file names.
const resultTimeLayout = "20060102_150405"

// ResultStore persists test batches, one immutable JSON file per tier run.
type ResultStore struct {
	baseDir string
}

// NewResultStore creates a store writing to dir (test_results by convention).
func NewResultStore(dir string) *ResultStore {
	return &ResultStore{baseDir: dir}
}

// Dir returns the results directory.
func (s *ResultStore) Dir() string {
	return s.baseDir
}

// Save writes a batch to a new file and records its path in batch.File.
// Existing files are never overwritten.
func (s *ResultStore) Save(batch *models.TestBatch) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.json", batch.Tier, batch.StartedAt.Format(resultTimeLayout), shortID(batch.ID))
	path := filepath.Join(s.baseDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create results file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write results file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close results file: %w", err)
	}

	batch.File = path
	return path, nil
}

// Load reads one result file. Both a batch object and a bare array of
// results are accepted; for arrays the tier is taken from the file name.
func (s *ResultStore) Load(path string) (*models.TestBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}

	batch := &models.TestBatch{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		results, err := decodeResultArray(trimmed)
		if err != nil {
			return nil, err
		}
		batch.Results = results
		batch.Tier, batch.StartedAt = parseResultName(filepath.Base(path))
	} else if err := json.Unmarshal(trimmed, batch); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}

	batch.File = path
	return batch, nil
}

// arrayResult is a result record in the bare-array format, whose
// timestamps may lack a zone.
type arrayResult struct {
	models.TestResult
	Timestamp string `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func decodeResultArray(data []byte) ([]models.TestResult, error) {
	var raw []arrayResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	results := make([]models.TestResult, 0, len(raw))
	for _, r := range raw {
		res := r.TestResult
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, r.Timestamp, time.Local); err == nil {
				res.Timestamp = ts
				break
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// resultFile is a result file on disk with the metadata in its name.
type resultFile struct {
	path    string
	tier    models.TestTier
	started time.Time
}

// list returns result files of tier, newest first. An empty tier lists all.
func (s *ResultStore) list(tier models.TestTier) ([]resultFile, error) {
	entries, err := os.ReadDir(s.baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results directory: %w", err)
	}

	var files []resultFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		t, started := parseResultName(e.Name())
		if tier != "" && t != tier {
			continue
		}
		files = append(files, resultFile{path: filepath.Join(s.baseDir, e.Name()), tier: t, started: started})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].started.Equal(files[j].started) {
			return files[i].started.After(files[j].started)
		}
		return files[i].path > files[j].path
	})
	return files, nil
}

// Recent loads up to n of the newest batches of tier, newest first.
// Unreadable files are skipped.
func (s *ResultStore) Recent(tier models.TestTier, n int) ([]*models.TestBatch, error) {
	files, err := s.list(tier)
	if err != nil {
		return nil, err
	}

	var batches []*models.TestBatch
	for _, f := range files {
		if n > 0 && len(batches) >= n {
			break
		}
		b, err := s.Load(f.path)
		if err != nil {
			continue
		}
		if b.Tier == "" {
			b.Tier = f.tier
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// parseResultName extracts the tier and start time from
// <tier>_<YYYYMMDD>_<HHMMSS>[_<id>].json.
func parseResultName(name string) (models.TestTier, time.Time) {
	parts := strings.Split(strings.TrimSuffix(name, ".json"), "_")
	if len(parts) < 3 {
		return models.TestTier(parts[0]), time.Time{}
	}
	started, _ := time.ParseInLocation(resultTimeLayout, parts[1]+"_"+parts[2], time.Local)
	return models.TestTier(parts[0]), started
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
