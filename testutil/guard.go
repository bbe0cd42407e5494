// Package testutil enforces the repository's import-boundary rules from
// tests: public library packages under pkg/ declare contracts, drivers
// under internal/ implement them, and the dependency arrow never points
// outward.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// InfraImportForbidden matches import paths pointing into the
// storage-driver layer.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "modelkit/internal/infra")
}

// InternalImportForbidden matches any import path under this module's
// internal tree.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "modelkit/internal/")
}

// AssertNoDirectImports parses every non-test .go file in dir (typically
// "." from within the package under guard) and fails the test when an
// import path satisfies the forbidden predicate. Build tags are not
// evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(path string) bool, reason string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	fset := token.NewFileSet()
	var violations []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		parsed, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, imp := range parsed.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if forbidden(path) {
				violations = append(violations, path+" (in "+name+")")
			}
		}
	}
	if len(violations) > 0 {
		t.Fatalf("forbidden direct imports (%s):\n%s", reason, strings.Join(violations, "\n"))
	}
}

// AssertNoTransitiveDependency runs `go list -deps` for the pattern and
// fails the test when any dependency path satisfies the forbidden
// predicate. Unlike AssertNoDirectImports this also catches boundary
// violations smuggled in through an intermediate package.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	out, err := exec.Command("go", "list", "-deps", pattern).CombinedOutput()
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, out)
	}
	var violations []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" && forbidden(line) {
			violations = append(violations, line)
		}
	}
	if len(violations) > 0 {
		t.Fatalf("forbidden transitive dependencies (%s):\n%s", reason, strings.Join(violations, "\n"))
	}
}
