package main

import (
	"fmt"
	"os"
	"strings"

	"nodeclass/internal/codec"
	"nodeclass/internal/loader"
	"nodeclass/internal/service"

	"github.com/spf13/cobra"
)

var classifyFormat string

var classifyCmd = &cobra.Command{
	Use:   "classify NODE",
	Short: "Print a node's classification document",
	Long: `Print the effective classes and parameters of a node.

This is the external node classifier entry point: configuration management
agents invoke it with the node name and read the YAML document on stdout.
Unknown nodes exit non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.svc.Classification.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.svc.Classification.Export(cmd.Context(), c, classifyFormat, os.Stdout)
	},
}

var (
	importStrategy string
	importFormat   string
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Apply a seed document or Ansible inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		path := args[0]
		if importFormat != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			fragment, err := loader.Parse(data, importFormat)
			if err != nil {
				return err
			}
			result, err := a.svc.Import.Apply(cmd.Context(), fragment, importStrategy)
			if err != nil {
				return err
			}
			printImportResult(result)
			return nil
		}

		result, err := loader.New(a.svc, a.log).WithStrategy(importStrategy).Load(cmd.Context(), path)
		if err != nil {
			return err
		}
		printImportResult(result)
		return nil
	},
}

func printImportResult(r *service.ImportResult) {
	fmt.Printf("strategy:    %s\n", r.Strategy)
	fmt.Printf("classes:     %d created\n", r.ClassesCreated)
	fmt.Printf("groups:      %d created, %d updated\n", r.GroupsCreated, r.GroupsUpdated)
	fmt.Printf("nodes:       %d created, %d updated\n", r.NodesCreated, r.NodesUpdated)
	fmt.Printf("memberships: %d created\n", r.MembershipsCreated)
	fmt.Printf("inclusions:  %d created\n", r.InclusionsCreated)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit the stored inclusion graph for cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		cycles, err := a.svc.Classification.FindCycles(cmd.Context())
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Println("no cycles")
			return nil
		}
		for _, c := range cycles {
			fmt.Println(strings.Join(c, " -> "))
		}
		return fmt.Errorf("%d cycle(s) found", len(cycles))
	},
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Print the node graph as an Ansible inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.svc.Classification.ExportInventory(cmd.Context(), os.Stdout)
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyFormat, "format", "f", codec.FormatYAML, "output format: yaml or json")
	importCmd.Flags().StringVarP(&importStrategy, "strategy", "s", service.StrategyMerge, "import strategy: merge or replace")
	importCmd.Flags().StringVar(&importFormat, "format", "", "input format: seed or ansible-inventory (default: detect)")
}
