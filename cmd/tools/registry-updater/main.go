// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/SarthakGarg19/social-support-ai/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	idAdd := addCmd.String("id", "", "Program ID (e.g., upskilling)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Vocational Upskilling)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., training)")
	provider := addCmd.String("provider", "", "Delivering agency or partner")
	statuses := addCmd.String("statuses", "", "Comma-separated target employment statuses (e.g., unemployed,part_time)")
	decisions := addCmd.String("decisions", "APPROVED", "Comma-separated target decisions")
	minFamily := addCmd.Int("minFamilySize", 0, "Minimum family size (0 = any)")
	incomeUpper := addCmd.Float64("incomeBandUpper", 0, "Upper monthly income band (0 = any)")
	duration := addCmd.Int("durationWeeks", 0, "Program duration in weeks")
	addCmd.StringVar(&registryPath, "path", "configs/programs.json", "Path to catalog file")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Program ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, category, provider, minFamilySize, incomeBandUpper, durationWeeks)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/programs.json", "Path to catalog file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/programs.json", "Path to catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *category == "" {
			fmt.Println("Error: id, displayName, description, and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		program := registry.Program{
			ID:              *idAdd,
			DisplayName:     *displayName,
			Description:     *description,
			Category:        *category,
			Provider:        *provider,
			TargetStatuses:  splitList(*statuses),
			TargetDecisions: splitList(*decisions),
			MinFamilySize:   *minFamily,
			IncomeBandUpper: *incomeUpper,
			NextSteps:       []string{},
			DurationWeeks:   *duration,
		}
		err := addProgram(&program)
		if err != nil {
			fmt.Printf("Error adding program: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added program: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err := updateProgram(*idUpdate, *field, *value)
		if err != nil {
			fmt.Printf("Error updating program: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated program %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err := validateCatalog()
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Catalog validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func addProgram(program *registry.Program) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// If file doesn't exist, create new catalog
		if os.IsNotExist(err) {
			reg = &registry.ProgramRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Programs:    []registry.Program{},
			}
		} else {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	// Check if program already exists
	for _, existing := range reg.Programs {
		if existing.ID == program.ID {
			return fmt.Errorf("program with ID %s already exists", program.ID)
		}
	}

	reg.Programs = append(reg.Programs, *program)
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	return saveCatalog(reg, registryPath)
}

func updateProgram(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	found := false
	for i := range reg.Programs {
		if reg.Programs[i].ID == id {
			found = true
			switch field {
			case "displayName":
				reg.Programs[i].DisplayName = value
			case "description":
				reg.Programs[i].Description = value
			case "category":
				reg.Programs[i].Category = value
			case "provider":
				reg.Programs[i].Provider = value
			case "minFamilySize":
				size, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid minFamilySize value: %w", err)
				}
				reg.Programs[i].MinFamilySize = size
			case "incomeBandUpper":
				upper, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("invalid incomeBandUpper value: %w", err)
				}
				reg.Programs[i].IncomeBandUpper = upper
			case "durationWeeks":
				weeks, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid durationWeeks value: %w", err)
				}
				reg.Programs[i].DurationWeeks = weeks
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("program with ID %s not found", id)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveCatalog(reg, registryPath)
}

func validateCatalog() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if len(reg.Programs) == 0 {
		return fmt.Errorf("catalog contains no programs")
	}

	ids := make(map[string]bool)
	for _, program := range reg.Programs {
		if program.ID == "" {
			return fmt.Errorf("program missing required field: ID")
		}
		if ids[program.ID] {
			return fmt.Errorf("duplicate program ID: %s", program.ID)
		}
		ids[program.ID] = true

		if program.DisplayName == "" {
			return fmt.Errorf("program %s missing required field: DisplayName", program.ID)
		}
		if program.Description == "" {
			return fmt.Errorf("program %s missing required field: Description", program.ID)
		}
		if len(program.TargetDecisions) == 0 {
			return fmt.Errorf("program %s has no target decisions and can never be recommended", program.ID)
		}
		if program.MinFamilySize < 0 {
			return fmt.Errorf("program %s has negative minFamilySize", program.ID)
		}
		if program.IncomeBandUpper < 0 {
			return fmt.Errorf("program %s has negative incomeBandUpper", program.ID)
		}
	}

	fmt.Printf("Catalog validation passed. Found %d programs.\n", len(reg.Programs))
	return nil
}

// saveCatalog handles saving the catalog to file
func saveCatalog(reg *registry.ProgramRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new program to the catalog
  update   Update an existing program's field
  validate Validate the catalog file
  help     Show this help message

Examples:
  registry-updater add -id upskilling -displayName "Vocational Upskilling" -description "Training for in-demand trades" -category training -statuses unemployed,part_time
  registry-updater update -id upskilling -field durationWeeks -value 12
  registry-updater validate -path configs/programs.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
