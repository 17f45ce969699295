package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Krishna8167/mathrender/internal/catalog"
)

var category string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the built-in formula catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List formulas, optionally filtered by category",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search formula names and descriptions",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogSearch,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one formula with its neighbours",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

func init() {
	catalogListCmd.Flags().StringVar(&category, "category", "", "Only list this category")
	catalogCmd.AddCommand(catalogListCmd, catalogSearchCmd, catalogShowCmd)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	c, err := catalog.Builtin()
	if err != nil {
		return err
	}

	formulas := c.All()
	if category != "" {
		if _, ok := c.Category(category); !ok {
			return fmt.Errorf("unknown category %q", category)
		}
		formulas = c.ByCategory(category)
	}

	printFormulas(cmd, formulas)
	return nil
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	c, err := catalog.Builtin()
	if err != nil {
		return err
	}

	hits := c.Search(args[0])
	if len(hits) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no formulas match %q\n", args[0])
		return nil
	}
	printFormulas(cmd, hits)
	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	c, err := catalog.Builtin()
	if err != nil {
		return err
	}
	f, err := c.ByID(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cat, _ := c.Category(f.Category)
	fmt.Fprintf(out, "#%d %s\n", f.ID, f.Name)
	fmt.Fprintf(out, "category: %s (%s)\n", cat.Name, cat.Color)
	fmt.Fprintf(out, "latex:    %s\n", f.Latex)
	fmt.Fprintf(out, "\n%s\n", f.Description)

	if related := c.Related(f.ID, 5); len(related) > 0 {
		fmt.Fprintln(out, "\nrelated:")
		for _, r := range related {
			fmt.Fprintf(out, "  #%d %s\n", r.ID, r.Name)
		}
	}
	return nil
}

func printFormulas(cmd *cobra.Command, formulas []catalog.Formula) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tNAME")
	for _, f := range formulas {
		fmt.Fprintf(w, "%d\t%s\t%s\n", f.ID, f.Category, f.Name)
	}
	w.Flush()
}
