// Package preflight verifies the environment a shutdown run depends on:
// external binaries, directory access, and per-stream env files. Checks
// report rather than fail; a degraded environment still allows a run, it
// just changes what the run can guarantee.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"streamhalt/internal/config"
	"streamhalt/internal/streamenv"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every applicable check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckCommand("ps", "required to locate producer and mover processes", false),
		CheckCommand("lsof", "open-handle detection; absent means degraded size-only stability checks", true),
	}

	resolver := streamenv.NewResolver(cfg)
	streams := resolver.ResolveAll()
	for _, stream := range streams {
		results = append(results, checkStream(stream))
	}

	// Final roots are usually shared across streams; check each one once.
	seen := map[string]struct{}{}
	for _, stream := range streams {
		if _, dup := seen[stream.FinalDir]; dup {
			continue
		}
		seen[stream.FinalDir] = struct{}{}
		results = append(results, CheckDirectoryAccess("Final root", stream.FinalDir))
	}

	if cfg.Journal.Enabled {
		results = append(results, CheckDirectoryAccess("Journal directory", filepath.Dir(cfg.Journal.Path)))
	}

	return results
}

// Failed returns the subset of results for required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckCommand verifies that a binary is resolvable on PATH.
func CheckCommand(command, description string, optional bool) Result {
	path, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: command, Optional: optional, Detail: fmt.Sprintf("not found on PATH (%s)", description)}
	}
	return Result{Name: command, Passed: true, Optional: optional, Detail: path}
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

// checkStream reports whether a stream's env file and temp directory are in
// place. A missing env file is not a failure: defaults apply, so the check
// passes with a note.
func checkStream(stream streamenv.Stream) Result {
	name := fmt.Sprintf("Stream %d", stream.Index)

	if stream.EnvFile == "" {
		return Result{
			Name:   name,
			Passed: true,
			Detail: fmt.Sprintf("no env file, defaults apply (temp %s)", stream.TempDir),
		}
	}

	if _, err := os.Stat(stream.TempDir); err != nil {
		if os.IsNotExist(err) {
			// The temp directory appears when the producer first writes;
			// its absence before a run just means nothing to drain.
			return Result{
				Name:   name,
				Passed: true,
				Detail: fmt.Sprintf("%s (temp dir %s not yet created)", stream.EnvFile, stream.TempDir),
			}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat temp dir: %v)", stream.EnvFile, err)}
	}

	if err := unix.Access(stream.TempDir, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: temp dir not writable: %v)", stream.EnvFile, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (temp %s)", stream.EnvFile, stream.TempDir)}
}
