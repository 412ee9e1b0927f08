package contracts

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

func sampleContracts() map[string]*models.InterfaceContract {
	return map[string]*models.InterfaceContract{
		"Auth": {
			Name:           "Auth",
			Methods:        []models.Descriptor{{"name": "Login"}, {"name": "Logout"}},
			DataStructures: []models.Descriptor{{"name": "Token"}},
			ImplementedBy:  []string{"F001"},
			UsedBy:         []string{"F002"},
		},
		"Billing": {
			Name:   "Billing",
			UsedBy: []string{"F003"},
		},
	}
}

func TestNewRegistry_MergesFeatureDeclarations(t *testing.T) {
	contracts := sampleContracts()
	features := []models.Feature{
		{ID: "F001"},
		{ID: "F004", ImplementsInterfaces: []string{"Auth"}, UsesInterfaces: []string{"Search"}},
		{ID: "F005", UsesInterfaces: []string{"Auth"}},
	}

	r := NewRegistry(contracts, features)

	auth, _ := r.Get("Auth")
	if want := []string{"F001", "F004"}; !reflect.DeepEqual(auth.ImplementedBy, want) {
		t.Errorf("ImplementedBy = %v, want %v", auth.ImplementedBy, want)
	}
	if want := []string{"F002", "F005"}; !reflect.DeepEqual(auth.UsedBy, want) {
		t.Errorf("UsedBy = %v, want %v", auth.UsedBy, want)
	}
	if len(contracts["Auth"].ImplementedBy) != 1 {
		t.Error("input contracts must not be modified")
	}

	compat := r.Check("F004", func(string) bool { return true })
	if len(compat.Warnings) != 1 || !strings.Contains(compat.Warnings[0], "Search") {
		t.Errorf("expected warning for undeclared contract, got %v", compat.Warnings)
	}
}

func TestObligations(t *testing.T) {
	r := NewRegistry(sampleContracts(), nil)

	got := r.Obligations("F001")
	if len(got) != 1 {
		t.Fatalf("expected 1 obligation, got %d", len(got))
	}
	if got[0].Contract != "Auth" || got[0].Type != "implements" {
		t.Errorf("unexpected obligation %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].RequiredMethods, []string{"Login", "Logout"}) {
		t.Errorf("unexpected methods %v", got[0].RequiredMethods)
	}
	if !reflect.DeepEqual(got[0].RequiredStructures, []string{"Token"}) {
		t.Errorf("unexpected structures %v", got[0].RequiredStructures)
	}

	if len(r.Obligations("F002")) != 0 {
		t.Error("consumers have no obligations")
	}
}

func TestCheck(t *testing.T) {
	r := NewRegistry(sampleContracts(), nil)

	tests := []struct {
		name        string
		feature     string
		implementer bool
		compatible  bool
		issueType   string
	}{
		{"implementer ready", "F002", true, true, ""},
		{"implementer blocked", "F002", false, false, IssueDependency},
		{"no implementer", "F003", true, false, IssueUnimplemented},
		{"no usage", "F001", false, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Check(tt.feature, func(string) bool { return tt.implementer })
			if got.Compatible != tt.compatible {
				t.Fatalf("Compatible = %v, want %v (issues %v)", got.Compatible, tt.compatible, got.Issues)
			}
			if tt.issueType == "" {
				if len(got.Issues) != 0 {
					t.Errorf("expected no issues, got %v", got.Issues)
				}
				return
			}
			if len(got.Issues) != 1 || got.Issues[0].Type != tt.issueType {
				t.Errorf("expected one %s issue, got %v", tt.issueType, got.Issues)
			}
		})
	}
}

func TestCheck_Message(t *testing.T) {
	r := NewRegistry(sampleContracts(), nil)
	got := r.Check("F002", func(string) bool { return false })
	want := "Interface Auth is not yet implemented by F001"
	if got.Issues[0].Message != want {
		t.Errorf("message = %q, want %q", got.Issues[0].Message, want)
	}
	if got.Issues[0].Implementer != "F001" {
		t.Errorf("implementer = %q", got.Issues[0].Implementer)
	}
}

func TestAmend(t *testing.T) {
	r := NewRegistry(sampleContracts(), nil)

	if err := r.Declare(models.InterfaceContract{Name: "Search", Description: "full text"}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}
	if err := r.AddImplementer("Search", "F010"); err != nil {
		t.Fatalf("AddImplementer failed: %v", err)
	}
	if err := r.AddConsumer("Search", "F011"); err != nil {
		t.Fatalf("AddConsumer failed: %v", err)
	}
	if err := r.AddConsumer("Search", "F011"); err != nil {
		t.Fatalf("AddConsumer failed: %v", err)
	}

	search, ok := r.Get("Search")
	if !ok {
		t.Fatal("expected Search to be declared")
	}
	if search.Version != models.DefaultContractVersion {
		t.Errorf("expected default version, got %q", search.Version)
	}
	if len(search.UsedBy) != 1 {
		t.Errorf("expected consumers to be unique, got %v", search.UsedBy)
	}

	if err := r.Declare(models.InterfaceContract{Name: "Search", Version: "2.0.0"}); err != nil {
		t.Fatalf("re-Declare failed: %v", err)
	}
	search, _ = r.Get("Search")
	if len(search.ImplementedBy) != 1 || search.Version != "2.0.0" {
		t.Errorf("expected redeclare to keep links and update version, got %+v", search)
	}

	if err := r.AddImplementer("Nope", "F1"); !errors.Is(err, ErrContractNotFound) {
		t.Errorf("expected ErrContractNotFound, got %v", err)
	}
	if err := r.Declare(models.InterfaceContract{}); err == nil {
		t.Error("expected error for unnamed contract")
	}
}

func TestValidate(t *testing.T) {
	issues := NewRegistry(sampleContracts(), nil).Validate()
	if len(issues) != 1 || issues[0].Contract != "Billing" {
		t.Errorf("expected Billing to be reported, got %v", issues)
	}
}
