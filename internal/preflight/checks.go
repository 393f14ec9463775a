package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Requirement defines an external binary mediashelf shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckBinary reports whether the requirement's command resolves on PATH.
func CheckBinary(req Requirement) Result {
	result := Result{Name: req.Name, Optional: req.Optional}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		result.Detail = "command not configured"
		return result
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found (%s)", cmd, req.Description)
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore pings the catalog with a short timeout.
func CheckStore(ctx context.Context, store Pinger, openErr error) Result {
	const name = "Catalog"
	if openErr != nil {
		return Result{Name: name, Detail: openErr.Error()}
	}
	if store == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}
