package session

import (
	"fmt"
	"os"
	"strings"
)

// validateArtifact re-opens the written file and confirms the minimal
// structural markers landed: non-empty, a module declaration, and a type
// declaration. Validation reads from disk rather than trusting the
// in-memory text so a failed or partial write is caught.
func validateArtifact(a *Artifact) error {
	data, err := os.ReadFile(a.TargetPath)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", a.TargetPath, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%s is empty", a.TargetPath)
	}

	if a.Role == RoleMapperXML {
		if !strings.Contains(text, "<mapper") {
			return fmt.Errorf("%s missing mapper element", a.TargetPath)
		}
		return nil
	}

	if !strings.Contains(text, "package ") {
		return fmt.Errorf("%s missing package declaration", a.TargetPath)
	}
	if !strings.Contains(text, "class ") && !strings.Contains(text, "interface ") && !strings.Contains(text, "enum ") {
		return fmt.Errorf("%s missing type declaration", a.TargetPath)
	}
	return nil
}
