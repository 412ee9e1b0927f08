package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

var (
	contractDescription string
	contractVersion     string
	contractMethods     []string
	contractStructures  []string
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Manage interface contracts",
	Long: `List, declare and link interface contracts.

Contracts are kept in the contract ledger (interface_contracts.json by
default). A feature that uses a contract is compatible once every feature
implementing it can be implemented.`,
}

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every contract with its implementers and consumers",
	Args:  cobra.NoArgs,
	RunE:  runContractList,
}

var contractDeclareCmd = &cobra.Command{
	Use:   "declare NAME",
	Short: "Add or replace a contract definition",
	Long: `Add or replace a contract definition. Implementers and consumers already
recorded for the contract are kept.`,
	Example: `  featuregate contract declare auth_api --description "Session handling" --method login --method logout`,
	Args:    cobra.ExactArgs(1),
	RunE:    runContractDeclare,
}

var contractImplementCmd = &cobra.Command{
	Use:   "implement NAME ID",
	Short: "Record that a feature implements a contract",
	Args:  cobra.ExactArgs(2),
	RunE:  runContractImplement,
}

var contractUseCmd = &cobra.Command{
	Use:   "use NAME ID",
	Short: "Record that a feature uses a contract",
	Args:  cobra.ExactArgs(2),
	RunE:  runContractUse,
}

var contractCheckCmd = &cobra.Command{
	Use:   "check ID",
	Short: "Check the interface compatibility of a feature",
	Long: `Check the contracts a feature implements and uses. Exits with code 2 when
a used contract has no implementer or an implementer is blocked.`,
	Args: cobra.ExactArgs(1),
	RunE: runContractCheck,
}

var contractTestsCmd = &cobra.Command{
	Use:   "tests ID",
	Short: "List the declared integration tests covering a feature",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractTests,
}

func init() {
	contractDeclareCmd.Flags().StringVar(&contractDescription, "description", "", "What the interface is for")
	contractDeclareCmd.Flags().StringVar(&contractVersion, "version", "", "Contract version (default "+models.DefaultContractVersion+")")
	contractDeclareCmd.Flags().StringSliceVar(&contractMethods, "method", nil, "Required method, repeatable")
	contractDeclareCmd.Flags().StringSliceVar(&contractStructures, "structure", nil, "Shared data structure, repeatable")

	contractCmd.AddCommand(contractListCmd)
	contractCmd.AddCommand(contractDeclareCmd)
	contractCmd.AddCommand(contractImplementCmd)
	contractCmd.AddCommand(contractUseCmd)
	contractCmd.AddCommand(contractCheckCmd)
	contractCmd.AddCommand(contractTestsCmd)
}

func descriptors(names []string) []models.Descriptor {
	out := make([]models.Descriptor, 0, len(names))
	for _, n := range names {
		out = append(out, models.Descriptor{"name": n})
	}
	return out
}

func runContractList(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.engine.Contracts()
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No contracts declared")
		return nil
	}
	faint := color.New(color.Faint)
	for _, c := range list {
		fmt.Printf("%s %s  %s\n", color.New(color.Bold).Sprint(c.Name), faint.Sprint(c.Version), c.Description)
		fmt.Printf("    implemented by: %s\n", joinOrNone(c.ImplementedBy))
		fmt.Printf("    used by:        %s\n", joinOrNone(c.UsedBy))
	}
	return nil
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}

func runContractDeclare(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	c := models.InterfaceContract{
		Name:           args[0],
		Description:    contractDescription,
		Version:        contractVersion,
		Methods:        descriptors(contractMethods),
		DataStructures: descriptors(contractStructures),
	}
	if err := s.engine.DeclareContract(c); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("contract %s declared", c.Name), color.FgGreen)
	return nil
}

func runContractImplement(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.AddContractImplementer(args[0], args[1]); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("%s implements %s", args[1], args[0]), color.FgGreen)
	return nil
}

func runContractUse(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.AddContractConsumer(args[0], args[1]); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("%s uses %s", args[1], args[0]), color.FgGreen)
	return nil
}

func runContractCheck(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	c, err := s.engine.CheckInterfaceCompatibility(id)
	if err != nil {
		return err
	}

	if jsonFlag {
		if err := printJSON(c); err != nil {
			return err
		}
	} else {
		if c.Compatible {
			printStatus("✓", fmt.Sprintf("%s is interface compatible", id), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("%s has %d interface issues", id, len(c.Issues)), color.FgRed)
		}
		issues := make([]string, 0, len(c.Issues))
		for _, i := range c.Issues {
			issues = append(issues, i.Message)
		}
		printList("Issues:", issues, color.FgRed)
		obligations := make([]string, 0, len(c.Obligations))
		for _, o := range c.Obligations {
			obligations = append(obligations, fmt.Sprintf("%s %s: %s", o.Type, o.Contract, joinOrNone(o.RequiredMethods)))
		}
		printList("Obligations:", obligations, color.FgCyan)
		printList("Warnings:", c.Warnings, color.FgYellow)
	}

	if !c.Compatible {
		return &exitError{code: exitBlocked}
	}
	return nil
}

func runContractTests(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	tests, err := s.engine.IntegrationTestsFor(args[0])
	if err != nil {
		return err
	}
	if jsonFlag {
		if tests == nil {
			tests = []models.IntegrationTest{}
		}
		return printJSON(tests)
	}
	if len(tests) == 0 {
		fmt.Printf("No integration tests cover %s\n", args[0])
		return nil
	}
	for _, t := range tests {
		fmt.Printf("%-10s %s  (%s)\n", t.ID, t.Name, strings.Join(t.FeaturesTested, ", "))
	}
	return nil
}
