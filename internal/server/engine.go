package server

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strings"
)

// Engine is the analysis backend behind the mock server.
type Engine interface {
	// Dependencies lists the third-party modules the source imports.
	Dependencies(ctx context.Context, source string) ([]string, error)

	// Inline rewrites source with the given dependencies inlined.
	Inline(ctx context.Context, source string, deps []string) (string, error)
}

// EchoEngine is a development stand-in. It finds top-level imports and returns the source unchanged beneath a
// banner naming them.
type EchoEngine struct{}

var _ Engine = EchoEngine{}

// Dependencies scans import statements and returns the top-level module names in first-seen order.
func (EchoEngine) Dependencies(ctx context.Context, source string) ([]string, error) {
	var deps []string
	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		for _, mod := range importedModules(scanner.Text()) {
			if !slices.Contains(deps, mod) {
				deps = append(deps, mod)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	return deps, ctx.Err()
}

// Inline prefixes the source with a banner.
func (EchoEngine) Inline(ctx context.Context, source string, deps []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# biy mock server: no analysis performed\n")
	if len(deps) > 0 {
		fmt.Fprintf(&b, "# dependencies: %s\n", strings.Join(deps, ", "))
	}
	b.WriteString("\n")
	b.WriteString(source)
	return b.String(), nil
}

// importedModules returns the top-level modules named by an import line. Relative imports are skipped.
func importedModules(line string) []string {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "#"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	switch {
	case strings.HasPrefix(line, "from "):
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.HasPrefix(fields[1], ".") {
			return nil
		}
		return []string{topLevel(fields[1])}

	case strings.HasPrefix(line, "import "):
		var mods []string
		for _, part := range strings.Split(strings.TrimPrefix(line, "import "), ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			mods = append(mods, topLevel(fields[0]))
		}
		return mods
	}
	return nil
}

func topLevel(module string) string {
	name, _, _ := strings.Cut(module, ".")
	return name
}
