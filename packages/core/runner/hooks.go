package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Hook is a shell command run before or after a scenario's rows. A command
// prefixed with "-" may fail without failing the scenario.
type Hook struct {
	Command string
}

// RunHooks runs hooks in order through sh -c with dir as the working
// directory. It stops at the first failing hook that does not ignore errors.
func RunHooks(ctx context.Context, hooks []Hook, dir string, logger Logger) error {
	for _, h := range hooks {
		if err := runHook(ctx, h, dir, logger); err != nil {
			return err
		}
	}
	return nil
}

func runHook(ctx context.Context, h Hook, dir string, logger Logger) error {
	cmdStr := strings.TrimSpace(h.Command)
	if cmdStr == "" {
		return nil
	}

	ignoreError := strings.HasPrefix(cmdStr, "-")
	if ignoreError {
		cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
	}
	cmdStr = resolveExecutable(cmdStr, dir)

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logger.Printf("hook %q: %s", h.Command, strings.TrimSpace(string(output)))
	}
	if err != nil && !ignoreError {
		return fmt.Errorf("hook %q failed: %w\nOutput: %s", h.Command, err, output)
	}
	return nil
}

// resolveExecutable makes a relative script path or a script that lives in
// dir runnable from dir.
func resolveExecutable(cmdStr, dir string) string {
	if dir == "" {
		return cmdStr
	}
	parts := strings.Fields(cmdStr)
	if len(parts) == 0 {
		return cmdStr
	}

	executable := parts[0]
	switch {
	case strings.HasPrefix(executable, "./"), strings.HasPrefix(executable, "../"):
		parts[0] = filepath.Join(dir, executable)
	case !filepath.IsAbs(executable) && !isInPath(executable):
		candidate := filepath.Join(dir, executable)
		if _, err := os.Stat(candidate); err != nil {
			return cmdStr
		}
		parts[0] = candidate
	default:
		return cmdStr
	}
	return strings.Join(parts, " ")
}

func isInPath(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
