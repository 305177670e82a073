// Package streamenv resolves per-stream output locations from key=value env
// files. Resolution is intentionally repeated on every use so a sweep pass
// always sees the current configuration rather than a stale snapshot.
package streamenv

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"streamhalt/internal/config"
)

// Keys recognized in stream env files. Anything else is ignored.
const (
	KeyTempOutputPath  = "TEMP_OUTPUT_PATH"
	KeyFinalOutputPath = "FINAL_OUTPUT_PATH"
)

// Stream identifies one recording stream and its resolved storage locations.
type Stream struct {
	Index    int
	TempDir  string
	FinalDir string
	// EnvFile is the file the paths were read from; empty when both
	// candidate locations were missing and defaults were used.
	EnvFile string
}

// Resolver locates and reads per-stream env files.
type Resolver struct {
	runtimeDir      string
	profileDir      string
	profile         string
	count           int
	defaultTempDir  string
	defaultFinalDir string
}

// NewResolver builds a resolver from application configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		runtimeDir:      cfg.Paths.RuntimeDir,
		profileDir:      cfg.Paths.ProfileDir,
		profile:         cfg.Streams.Profile,
		count:           cfg.Streams.Count,
		defaultTempDir:  cfg.Streams.DefaultTempDir,
		defaultFinalDir: cfg.Streams.DefaultFinalDir,
	}
}

// Count returns the configured number of streams.
func (r *Resolver) Count() int { return r.count }

// Resolve returns the stream identity for a 1-based index. Missing env files
// are not an error; defaults apply.
func (r *Resolver) Resolve(index int) Stream {
	stream := Stream{
		Index:    index,
		TempDir:  r.defaultTempDir,
		FinalDir: r.defaultFinalDir,
	}

	envFile := r.envFilePath(index)
	if envFile == "" {
		return stream
	}
	stream.EnvFile = envFile

	if value, ok := Lookup(envFile, KeyTempOutputPath); ok {
		stream.TempDir = value
	}
	if value, ok := Lookup(envFile, KeyFinalOutputPath); ok {
		stream.FinalDir = value
	}
	return stream
}

// ResolveAll resolves every configured stream, freshly, in index order.
func (r *Resolver) ResolveAll() []Stream {
	streams := make([]Stream, 0, r.count)
	for i := 1; i <= r.count; i++ {
		streams = append(streams, r.Resolve(i))
	}
	return streams
}

// envFilePath picks the profile-scoped env file when present, falling back to
// the runtime directory, and returns "" when neither exists.
func (r *Resolver) envFilePath(index int) string {
	name := fmt.Sprintf(".env.stream%d", index)
	candidates := []string{
		filepath.Join(r.profileDir, r.profile, name),
		filepath.Join(r.runtimeDir, name),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Lookup scans an env file for the first "key=value" line and returns the
// trimmed value. Comments and unrelated lines are skipped.
func Lookup(envFile, key string) (string, bool) {
	file, err := os.Open(envFile)
	if err != nil {
		return "", false
	}
	defer file.Close()

	prefix := key + "="
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value := strings.TrimSpace(line[len(prefix):])
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}
