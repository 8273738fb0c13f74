package scaffold

import (
	"fmt"
	"os"
)

// CheckExisting returns an error if council.yml already exists in the
// current directory.
func CheckExisting() error {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'council init --force' to reinitialize (this will overwrite existing configuration)", ConfigFileName)
	}

	return nil
}
