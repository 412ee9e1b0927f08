package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// ErrFeatureNotFound is returned when a feature id is absent from the ledger.
var ErrFeatureNotFound = errors.New("feature not found")

// Paths names the ledger files relative to the project directory.
type Paths struct {
	Features         string
	Contracts        string
	IntegrationTests string
}

// DefaultPaths returns the conventional ledger file names.
func DefaultPaths() Paths {
	return Paths{
		Features:         "features.json",
		Contracts:        "interface_contracts.json",
		IntegrationTests: "integration_tests.json",
	}
}

// FileStore reads and writes ledgers stored as files in a project directory.
// Missing files are treated as empty ledgers.
type FileStore struct {
	dir   string
	paths Paths
}

// NewFileStore creates a store rooted at projectDir.
// Zero-valued fields of paths fall back to DefaultPaths.
func NewFileStore(projectDir string, paths Paths) *FileStore {
	def := DefaultPaths()
	if paths.Features == "" {
		paths.Features = def.Features
	}
	if paths.Contracts == "" {
		paths.Contracts = def.Contracts
	}
	if paths.IntegrationTests == "" {
		paths.IntegrationTests = def.IntegrationTests
	}
	return &FileStore{dir: projectDir, paths: paths}
}

// Dir returns the project directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// FeaturesPath returns the absolute path of the feature ledger.
func (s *FileStore) FeaturesPath() string {
	return s.resolve(s.paths.Features)
}

// ContractsPath returns the absolute path of the contract ledger.
func (s *FileStore) ContractsPath() string {
	return s.resolve(s.paths.Contracts)
}

// IntegrationTestsPath returns the absolute path of the integration test ledger.
func (s *FileStore) IntegrationTestsPath() string {
	return s.resolve(s.paths.IntegrationTests)
}

func (s *FileStore) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// Features loads the feature ledger.
func (s *FileStore) Features() ([]models.Feature, error) {
	data, err := readOptional(s.FeaturesPath())
	if err != nil || data == nil {
		return nil, err
	}
	features, _, err := DecodeFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.paths.Features, err)
	}
	return features, nil
}

// Contracts loads the contract ledger. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func (s *FileStore) Contracts() (map[string]*models.InterfaceContract, error) {
	path := s.ContractsPath()
	data, err := readOptional(path)
	if err != nil || data == nil {
		return map[string]*models.InterfaceContract{}, err
	}

	contracts := make(map[string]*models.InterfaceContract)
	if isYAML(path) {
		err = yaml.Unmarshal(data, &contracts)
	} else {
		err = json.Unmarshal(data, &contracts)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.paths.Contracts, err)
	}
	return normalizeContracts(contracts), nil
}

// SaveContracts writes the contract ledger in the format implied by its file name.
func (s *FileStore) SaveContracts(contracts map[string]*models.InterfaceContract) error {
	path := s.ContractsPath()

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(contracts)
	} else {
		data, err = json.MarshalIndent(contracts, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal contracts: %w", err)
	}
	return writeAtomic(path, data)
}

// IntegrationTests loads the integration test ledger. Both a bare array and
// an object with a "tests" field are accepted.
func (s *FileStore) IntegrationTests() ([]models.IntegrationTest, error) {
	data, err := readOptional(s.IntegrationTestsPath())
	if err != nil || data == nil {
		return nil, err
	}

	var tests []models.IntegrationTest
	switch firstByte(data) {
	case '[':
		err = json.Unmarshal(data, &tests)
	case '{':
		var wrapped struct {
			Tests []models.IntegrationTest `json:"tests"`
		}
		err = json.Unmarshal(data, &wrapped)
		tests = wrapped.Tests
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.paths.IntegrationTests, err)
	}
	return tests, nil
}

// SaveFeatures writes a complete feature ledger, wrapped in {"features": [...]}.
// Used when a ledger is created; updates go through SetPasses so that fields
// unknown to this package survive.
func (s *FileStore) SaveFeatures(features []models.Feature) error {
	data, err := json.MarshalIndent(struct {
		Features []models.Feature `json:"features"`
	}{features}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	return writeAtomic(s.FeaturesPath(), data)
}

// SetPasses flips the passes flag of one feature in place. The ledger keeps
// the shape it was read in and every field of every record is preserved.
func (s *FileStore) SetPasses(featureID string, passes bool, verifiedAt time.Time) error {
	path := s.FeaturesPath()
	data, err := readOptional(path)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%s: %w", featureID, ErrFeatureNotFound)
	}

	raw, err := decodeRaw(data)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.paths.Features, err)
	}

	found := false
	for _, rec := range raw.records {
		var id string
		if err := json.Unmarshal(rec["id"], &id); err != nil || id != featureID {
			continue
		}
		rec["passes"], _ = json.Marshal(passes)
		if passes && !verifiedAt.IsZero() {
			rec["last_verified_compatible"], _ = json.Marshal(verifiedAt.UTC().Format(time.RFC3339))
		}
		found = true
	}
	if !found {
		return fmt.Errorf("%s: %w", featureID, ErrFeatureNotFound)
	}

	out, err := raw.encode()
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	return writeAtomic(path, out)
}

func normalizeContracts(contracts map[string]*models.InterfaceContract) map[string]*models.InterfaceContract {
	for name, c := range contracts {
		if c == nil {
			c = &models.InterfaceContract{}
			contracts[name] = c
		}
		if c.Name == "" {
			c.Name = name
		}
		if c.Version == "" {
			c.Version = models.DefaultContractVersion
		}
	}
	return contracts
}

// readOptional returns nil data without error when the file does not exist.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// writeAtomic replaces path with data via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func firstByte(data []byte) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}
