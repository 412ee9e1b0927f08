package engine

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ShayCichocki/featuregate/internal/compat"
	"github.com/ShayCichocki/featuregate/internal/config"
	"github.com/ShayCichocki/featuregate/internal/contracts"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// setupFileEngine creates an engine over file ledgers in a temp project.
func setupFileEngine(t *testing.T, files map[string]string) (*Engine, string) {
	t.Helper()
	project := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(project, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	e := New(EngineConfig{
		ProjectDir: project,
		Store:      ledger.NewFileStore(project, ledger.Paths{}),
		TestConfig: config.DefaultTestConfig(),
		Executor:   passingExecutor,
	})
	t.Cleanup(func() { e.Close() })
	return e, project
}

const contractFeatures = `{"features": [
	{"id": "F001", "description": "auth", "priority": 1},
	{"id": "F002", "description": "profile", "priority": 2, "dependencies": ["F001"]}
]}`

func TestEngine_AmendContractsRoundTrip(t *testing.T) {
	e, project := setupFileEngine(t, map[string]string{"features.json": contractFeatures})

	err := e.DeclareContract(models.InterfaceContract{
		Name:        "auth_api",
		Description: "Session handling",
		Methods:     []models.Descriptor{{"name": "login"}},
	})
	if err != nil {
		t.Fatalf("DeclareContract failed: %v", err)
	}
	if err := e.AddContractConsumer("auth_api", "F002"); err != nil {
		t.Fatalf("AddContractConsumer failed: %v", err)
	}

	c, err := e.CheckInterfaceCompatibility("F002")
	if err != nil {
		t.Fatalf("CheckInterfaceCompatibility failed: %v", err)
	}
	if c.Compatible || len(c.Issues) != 1 || c.Issues[0].Type != contracts.IssueUnimplemented {
		t.Errorf("expected one unimplemented issue, got %+v", c)
	}

	if err := e.AddContractImplementer("auth_api", "F001"); err != nil {
		t.Fatalf("AddContractImplementer failed: %v", err)
	}
	c, err = e.CheckInterfaceCompatibility("F002")
	if err != nil {
		t.Fatalf("CheckInterfaceCompatibility failed: %v", err)
	}
	if !c.Compatible {
		t.Errorf("expected F002 compatible once F001 implements auth_api, got %+v", c.Issues)
	}

	// A fresh store reads what the engine saved.
	saved, err := ledger.NewFileStore(project, ledger.Paths{}).Contracts()
	if err != nil {
		t.Fatalf("reload contracts: %v", err)
	}
	got := saved["auth_api"]
	if got == nil {
		t.Fatal("auth_api not saved")
	}
	if !reflect.DeepEqual(got.ImplementedBy, []string{"F001"}) || !reflect.DeepEqual(got.UsedBy, []string{"F002"}) {
		t.Errorf("unexpected links: implemented_by %v, used_by %v", got.ImplementedBy, got.UsedBy)
	}
	if got.Version != models.DefaultContractVersion || !reflect.DeepEqual(got.MethodLabels(), []string{"login"}) {
		t.Errorf("unexpected contract %+v", got)
	}

	// Redeclaring keeps the links.
	if err := e.DeclareContract(models.InterfaceContract{Name: "auth_api", Version: "2.0.0"}); err != nil {
		t.Fatalf("redeclare failed: %v", err)
	}
	list, err := e.Contracts()
	if err != nil {
		t.Fatalf("Contracts failed: %v", err)
	}
	if len(list) != 1 || list[0].Version != "2.0.0" || len(list[0].ImplementedBy) != 1 {
		t.Errorf("unexpected contracts after redeclare: %+v", list)
	}
}

func TestEngine_AmendContractsErrors(t *testing.T) {
	e, project := setupFileEngine(t, map[string]string{"features.json": contractFeatures})

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "unknown contract",
			run:  func() error { return e.AddContractImplementer("missing", "F001") },
			want: contracts.ErrContractNotFound,
		},
		{
			name: "unknown feature",
			run:  func() error { return e.AddContractConsumer("missing", "F999") },
			want: compat.ErrFeatureNotFound,
		},
		{
			name: "declare with unknown implementer",
			run: func() error {
				return e.DeclareContract(models.InterfaceContract{Name: "x", ImplementedBy: []string{"F999"}})
			},
			want: compat.ErrFeatureNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := e.DeclareContract(models.InterfaceContract{}); err == nil {
		t.Error("expected an error for a contract without a name")
	}
	if _, err := os.Stat(filepath.Join(project, "interface_contracts.json")); !os.IsNotExist(err) {
		t.Errorf("failed amendments must not write the ledger, stat: %v", err)
	}
}

// readOnlyStore hides the contract writer of the wrapped store.
type readOnlyStore struct {
	ledger.Store
}

func TestEngine_AmendContractsReadOnly(t *testing.T) {
	e := New(EngineConfig{
		ProjectDir: t.TempDir(),
		Store:      readOnlyStore{ledger.NewMemoryStore(twoFeatures())},
		TestConfig: config.DefaultTestConfig(),
		Executor:   passingExecutor,
	})
	defer e.Close()

	err := e.DeclareContract(models.InterfaceContract{Name: "auth_api"})
	if !errors.Is(err, ErrContractsReadOnly) {
		t.Errorf("expected ErrContractsReadOnly, got %v", err)
	}
}

func TestEngine_IntegrationTestsFor(t *testing.T) {
	e, _ := setupFileEngine(t, map[string]string{
		"features.json": contractFeatures,
		"integration_tests.json": `[
			{"id": "INT001", "name": "login flow", "features_tested": ["F001"]},
			{"id": "INT002", "name": "profile flow", "features_tested": ["F001", "F002"]}
		]`,
	})

	tests := []struct {
		id   string
		want []string
	}{
		{id: "F001", want: []string{"INT001", "INT002"}},
		{id: "F002", want: []string{"INT002"}},
	}
	for _, tt := range tests {
		got, err := e.IntegrationTestsFor(tt.id)
		if err != nil {
			t.Fatalf("IntegrationTestsFor(%s) failed: %v", tt.id, err)
		}
		ids := make([]string, 0, len(got))
		for _, it := range got {
			ids = append(ids, it.ID)
		}
		if !reflect.DeepEqual(ids, tt.want) {
			t.Errorf("IntegrationTestsFor(%s) = %v, want %v", tt.id, ids, tt.want)
		}
	}

	if _, err := e.IntegrationTestsFor("F999"); !errors.Is(err, compat.ErrFeatureNotFound) {
		t.Errorf("expected ErrFeatureNotFound, got %v", err)
	}
}
