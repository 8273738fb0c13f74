// Package scaffold creates a starter council.yml for new projects.
package scaffold

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// ConfigFileName is the configuration file created in the working directory.
const ConfigFileName = "council.yml"

// Initialize creates the starter council.yml in the current directory.
// If force is true, an existing council.yml is removed first.
func Initialize(force bool) error {
	if force {
		if err := handleForce(); err != nil {
			return err
		}
	}

	content, err := templatesFS.ReadFile("templates/council.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read council.yml template: %w", err)
	}

	if err := os.WriteFile(ConfigFileName, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigFileName, err)
	}

	if err := validateCreatedFile(); err != nil {
		return err
	}

	return nil
}

// handleForce removes the existing config if --force was specified
func handleForce() error {
	if _, err := os.Stat(ConfigFileName); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", ConfigFileName)
		if err := os.Remove(ConfigFileName); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFileName, err)
		}
	}

	return nil
}

// validateCreatedFile validates that the created file is well-formed YAML
func validateCreatedFile() error {
	content, err := os.ReadFile(ConfigFileName)
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ConfigFileName, err)
	}

	var yamlData interface{}
	if err := yaml.Unmarshal(content, &yamlData); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", ConfigFileName, err)
	}

	return nil
}

// PrintSuccess prints the success message with next steps
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized Council project!")
	fmt.Println("\nCreated:")
	fmt.Println("  ✓ council.yml")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Customize council.yml with your own personas and weights")
	fmt.Println("  2. Run 'council deliberate \"your question\"' for a synchronous decision")
	fmt.Println("  3. Or start 'councild' and submit queries with 'council submit'")
}
