package preflight

import (
	"errors"
	"fmt"
	"strings"

	"dqmon/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. The run root
// is expected to exist already (see config.EnsureDirectories).
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Run root", cfg.Paths.RunRoot),
		CheckReadableFile("Master parameters", cfg.Paths.MasterParams),
		CheckWorkerBinary(cfg),
	}
	if cfg.Monitor.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.RunRoot, cfg.Monitor.MinFreeMiB))
	}
	return results
}

// Failed collects the failing results into a single error, or nil.
func Failed(results []Result) error {
	var problems []string
	for _, r := range results {
		if !r.Passed {
			problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New("preflight failed: " + strings.Join(problems, "; "))
}
