package proclink

import (
	"fmt"
	"strings"
)

// validateEnv rejects variable names that cannot be represented in the
// OS environment block.
func validateEnv(env map[string]string) error {
	for name, value := range env {
		if name == "" {
			return fmt.Errorf("proclink: env: empty variable name")
		}
		if strings.ContainsAny(name, "=\x00") {
			return fmt.Errorf("proclink: env: invalid variable name %q", name)
		}
		if strings.Contains(value, "\x00") {
			return fmt.Errorf("proclink: env: variable %s: value contains null bytes", name)
		}
	}
	return nil
}
