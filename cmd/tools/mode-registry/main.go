// cmd/tools/mode-registry/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/llm/factory"
	"shopping-assistant/internal/models"
	"shopping-assistant/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	routeCmd := flag.NewFlagSet("route", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)

	validatePath := validateCmd.String("path", "", "Path to mode table (empty: embedded default)")
	listPath := listCmd.String("path", "", "Path to mode table (empty: embedded default)")

	updatePath := updateCmd.String("path", "configs/modes.json", "Path to mode table")
	mode := updateCmd.String("mode", "", "Mode to update (e.g., product-search)")
	field := updateCmd.String("field", "", "Field to update (provider, model, temperature, maxTokens, topP, displayName)")
	value := updateCmd.String("value", "", "New value for the field")

	routePath := routeCmd.String("path", "configs/modes.json", "Path to mode table")
	provider := routeCmd.String("provider", "", "Provider every mode should use")

	exportPath := exportCmd.String("path", "configs/modes.json", "Where to write the embedded default table")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(*validatePath, os.Stdout)

	case "list":
		listCmd.Parse(os.Args[2:])
		err = listRegistry(*listPath, os.Stdout)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *mode == "" || *field == "" || *value == "" {
			fmt.Println("Error: mode, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateMode(*updatePath, models.ResponseMode(*mode), *field, *value)
		if err == nil {
			fmt.Printf("Updated mode %s, field %s to %s\n", *mode, *field, *value)
		}

	case "route":
		routeCmd.Parse(os.Args[2:])
		if *provider == "" {
			fmt.Println("Error: provider is required for route.")
			routeCmd.Usage()
			os.Exit(1)
		}
		err = routeAll(*routePath, *provider)
		if err == nil {
			fmt.Printf("Routed every mode to %s\n", *provider)
		}

	case "export":
		exportCmd.Parse(os.Args[2:])
		err = exportDefault(*exportPath)
		if err == nil {
			fmt.Printf("Wrote default mode table to %s\n", *exportPath)
		}

	case "help":
		fallthrough
	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// knownProviders lists the providers the server can build.
func knownProviders() []string {
	return factory.New(config.ProvidersConfig{}, nil).Names()
}

func validateRegistry(path string, out io.Writer) error {
	reg, err := registry.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(knownProviders()); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}

	fmt.Fprintf(out, "Registry validation passed. Found %d modes.\n", len(reg.Modes))
	return nil
}

func listRegistry(path string, out io.Writer) error {
	reg, err := registry.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tPROVIDER\tMODEL\tTEMP\tMAX TOKENS\tPROMPT CHARS")
	for _, m := range reg.Modes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%d\n",
			m.Mode, m.Provider, m.Params.Model, m.Params.Temperature, m.Params.MaxTokens, len(m.SystemPrompt))
	}
	return tw.Flush()
}

func updateMode(path string, mode models.ResponseMode, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Modes {
		if reg.Modes[i].Mode != mode {
			continue
		}
		found = true
		entry := &reg.Modes[i]
		switch field {
		case "provider":
			entry.Provider = value
		case "model":
			entry.Params.Model = value
		case "displayName":
			entry.DisplayName = value
		case "temperature":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid temperature value: %w", err)
			}
			entry.Params.Temperature = v
		case "topP":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid topP value: %w", err)
			}
			entry.Params.TopP = v
		case "maxTokens":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid maxTokens value: %w", err)
			}
			entry.Params.MaxTokens = v
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}
	if !found {
		return fmt.Errorf("mode %s not found", mode)
	}

	return saveRegistry(reg, path)
}

func routeAll(path, provider string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	return saveRegistry(reg.WithProvider(provider), path)
}

func exportDefault(path string) error {
	reg, err := registry.Default()
	if err != nil {
		return err
	}
	return saveRegistry(reg, path)
}

// saveRegistry validates reg and writes it back to path.
func saveRegistry(reg *registry.ModeRegistry, path string) error {
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	// Round-trip through Parse so a bad edit never reaches disk.
	parsed, err := registry.Parse(data)
	if err != nil {
		return err
	}
	if err := parsed.Validate(knownProviders()); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: mode-registry <command> [flags]

Commands:
  validate  Check that every mode is present and uses a known provider
  list      Print the mode table
  update    Update one field of a mode
  route     Point every mode at one provider
  export    Write the embedded default table to a file
  help      Show this help message

Examples:
  mode-registry validate -path configs/modes.json
  mode-registry list
  mode-registry update -path configs/modes.json -mode product-search -field model -value gpt-4o
  mode-registry route -path configs/modes.json -provider gemini
  mode-registry export -path configs/modes.json

Use 'mode-registry <command> -h' for more information about a command.
`)
}
