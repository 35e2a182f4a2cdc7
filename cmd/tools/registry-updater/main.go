// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/validation"
	"github.com/Huzefa-Jadliwala/invox-client/pkg/registry"
)

const defaultPath = "pkg/registry/operations.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		help(out)
		return fmt.Errorf("no command given")
	}

	updateCmd := flag.NewFlagSet("update", flag.ContinueOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	listCmd := flag.NewFlagSet("list", flag.ContinueOnError)

	updatePath := updateCmd.String("path", defaultPath, "Path to the catalog file")
	id := updateCmd.String("id", "", "Operation ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, failureMessage)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultPath, "Path to the catalog file")
	listPath := listCmd.String("path", defaultPath, "Path to the catalog file")

	switch args[0] {
	case "update":
		if err := updateCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" || *field == "" || *value == "" {
			updateCmd.Usage()
			return fmt.Errorf("id, field, and value are required for update")
		}
		if err := updateOperation(*updatePath, *id, *field, *value); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated operation %s, field %s to %s\n", *id, *field, *value)

	case "validate":
		if err := validateCmd.Parse(args[1:]); err != nil {
			return err
		}
		n, err := validateRegistry(*validatePath)
		if err != nil {
			return fmt.Errorf("catalog validation failed: %w", err)
		}
		fmt.Fprintf(out, "Catalog validation passed. Found %d operations.\n", n)

	case "list":
		if err := listCmd.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*listPath)
		if err != nil {
			return err
		}
		for _, op := range reg.Operations {
			fmt.Fprintf(out, "%-24s %s\n", op.ID, op.Method)
		}

	case "help", "-h", "--help":
		help(out)

	default:
		help(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func updateOperation(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	found := false
	for i := range reg.Operations {
		if reg.Operations[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "displayName":
			reg.Operations[i].DisplayName = value
		case "description":
			reg.Operations[i].Description = value
		case "failureMessage":
			if !reg.Operations[i].Validated() {
				return fmt.Errorf("operation %s has no result check", id)
			}
			reg.Operations[i].FailureMessage = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}

	if !found {
		return fmt.Errorf("operation with ID %s not found", id)
	}

	reg.LastUpdated = time.Now().Format("2006-01-02")
	return saveRegistry(reg, path)
}

// validateRegistry parses the catalog and compiles every result schema.
func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, err
	}
	if len(reg.Operations) == 0 {
		return 0, fmt.Errorf("catalog contains no operations")
	}

	for _, op := range reg.Operations {
		if op.DisplayName == "" {
			return 0, fmt.Errorf("operation %s missing required field: displayName", op.ID)
		}
		if !op.Validated() {
			continue
		}
		if _, err := validation.Compile(op.ID, op.ResultSchema); err != nil {
			return 0, err
		}
	}
	return len(reg.Operations), nil
}

// saveRegistry handles saving the catalog to file
func saveRegistry(reg *registry.OperationRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

func help(w io.Writer) {
	fmt.Fprint(w, `
Usage: registry-updater <command> [flags]

Commands:
  update   Update a field of an operation in the catalog
  validate Validate the catalog file and compile its result schemas
  list     List operation ids and remote methods
  help     Show this help message

Examples:
  registry-updater update -id processForm -field failureMessage -value "Invalid response from form.processForm"
  registry-updater validate -path pkg/registry/operations.json
  registry-updater list

Use 'registry-updater <command> -h' for more information about a command.
`)
}
