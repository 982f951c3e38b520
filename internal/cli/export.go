package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icebox-app/icebox/internal/engine"
	"github.com/icebox-app/icebox/internal/store"
)

var (
	exportUser  int64
	exportScope string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's notes as markdown",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Int64Var(&exportUser, "user", 0, "user id to export (required)")
	exportCmd.Flags().StringVar(&exportScope, "scope", "all", `"all" or "valuable"`)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	exportCmd.MarkFlagRequired("user")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportScope != "all" && exportScope != "valuable" {
		return fmt.Errorf(`scope must be "all" or "valuable", got %q`, exportScope)
	}

	db, err := openDefaultDB()
	if err != nil {
		return err
	}
	defer db.Close()

	// The CLI is the operator's path; the premium gate applies to the API.
	ideas, err := db.ForExport(exportUser, exportScope == "valuable")
	if err != nil {
		return err
	}
	title := "IceBox — All ideas"
	if exportScope == "valuable" {
		title = "IceBox — Valuable ideas"
	}
	doc := engine.ExportMarkdown(ideas, title, time.Now())

	if exportOut == "" {
		fmt.Print(doc)
		return nil
	}
	if err := os.WriteFile(exportOut, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Fprintf(os.Stderr, "exported %d notes to %s\n", len(ideas), exportOut)
	return nil
}

func openDefaultDB() (*store.DB, error) {
	path := os.Getenv("ICEBOX_DB_PATH")
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
