// Package testutil provides test helpers that keep foodflow's package layering
// intact: domain types stay free of infrastructure, the service core stays
// free of transports, and only the wiring layer sees everything.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "foodflow"

// AssertNoTransitiveDependency loads pattern (e.g. "foodflow/pkg/domain")
// and fails if any package in its import closure satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	deps, err := loadDeps(pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	failIfTransitiveViolations(t, reason, filterPaths(deps, forbidden))
}

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import path satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfDirectViolations(t, reason, viols)
}

// InternalImportForbidden matches any foodflow/internal package.
func InternalImportForbidden(path string) bool {
	return strings.HasPrefix(path, modulePath+"/internal/")
}

// TransportImportForbidden matches the HTTP, websocket and export layers
// that sit on top of the service core.
func TransportImportForbidden(path string) bool {
	switch {
	case path == modulePath+"/internal/httpapi",
		path == modulePath+"/internal/live",
		path == modulePath+"/internal/exports",
		strings.HasPrefix(path, "github.com/go-chi/chi"),
		strings.HasPrefix(path, "github.com/coder/websocket"):
		return true
	}
	return false
}

// ServiceImportForbidden matches the service core and everything above it.
func ServiceImportForbidden(path string) bool {
	return path == modulePath+"/internal/core" || TransportImportForbidden(path)
}

// loadDeps is swapped in tests that must not load real packages.
var loadDeps = func(pattern string) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	var loadErrs []string
	seen := make(map[string]struct{})
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			loadErrs = append(loadErrs, e.Error())
		}
		seen[p.PkgPath] = struct{}{}
	})
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("package errors:\n%s", strings.Join(loadErrs, "\n"))
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func filterPaths(paths []string, forbidden func(string) bool) []string {
	var viols []string
	for _, p := range paths {
		if forbidden(p) {
			viols = append(viols, p)
		}
	}
	return viols
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfTransitiveViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden transitive dependency detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

func failIfDirectViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
