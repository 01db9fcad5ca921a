package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrBinaryNotFound is returned when no candidate worker binary is executable.
var ErrBinaryNotFound = errors.New("worker binary not found")

// Requirement defines an external dependency dqmon relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// BinaryLookup describes where to find the worker executable.
type BinaryLookup struct {
	// Explicit wins when set and must be executable.
	Explicit string
	// Name is the executable's file name inside each search directory.
	Name string
	// SearchPaths are tried in order. Relative entries are resolved against
	// BaseDir.
	SearchPaths []string
	// BaseDir anchors relative search paths. Empty means the directory of
	// the running executable.
	BaseDir string
}

// ResolveWorkerBinary returns the absolute path of the worker executable.
// Explicit paths are checked first, then each search directory, then PATH.
func ResolveWorkerBinary(lookup BinaryLookup) (string, error) {
	if explicit := strings.TrimSpace(lookup.Explicit); explicit != "" {
		if isExecutable(explicit) {
			return filepath.Abs(explicit)
		}
		return "", fmt.Errorf("%w: %s is not an executable file", ErrBinaryNotFound, explicit)
	}

	name := strings.TrimSpace(lookup.Name)
	if name == "" {
		return "", fmt.Errorf("%w: no binary name configured", ErrBinaryNotFound)
	}

	base := lookup.BaseDir
	if base == "" {
		if exe, err := os.Executable(); err == nil {
			base = filepath.Dir(exe)
		}
	}

	tried := make([]string, 0, len(lookup.SearchPaths)+1)
	for _, dir := range lookup.SearchPaths {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) && base != "" {
			dir = filepath.Join(base, dir)
		}
		candidate := filepath.Join(dir, name)
		tried = append(tried, candidate)
		if isExecutable(candidate) {
			return filepath.Abs(candidate)
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return filepath.Abs(path)
	}
	tried = append(tried, "$PATH")
	return "", fmt.Errorf("%w: %s (searched %s)", ErrBinaryNotFound, name, strings.Join(tried, ", "))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
