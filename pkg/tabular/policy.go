package tabular

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	scenarios "github.com/goliatone/go-scenarios"
)

// DefaultPolicyPattern selects the policy files loaded from a directory.
const DefaultPolicyPattern = "**/*.{csv,xlsx}"

// ReadPolicyTable reads a policy file. The table is named after the file.
func ReadPolicyTable(filePath string, opts ...ReadOption) (*scenarios.PolicyTable, error) {
	return readPolicyTable(filePath, filepath.Base(filePath), opts...)
}

func readPolicyTable(filePath, name string, opts ...ReadOption) (*scenarios.PolicyTable, error) {
	table, err := Read(filePath, opts...)
	if err != nil {
		return nil, err
	}
	policy, err := scenarios.NewPolicyTable(name, table.Header, table.Records)
	if err != nil {
		return nil, fmt.Errorf("tabular: %s: %w", filePath, err)
	}
	return policy, nil
}

// LoadPolicyCatalog reads every file under dir matching pattern. Tables are
// named by their slash separated path relative to dir. An empty pattern uses
// DefaultPolicyPattern.
func LoadPolicyCatalog(dir, pattern string) (*scenarios.PolicyCatalog, error) {
	if pattern == "" {
		pattern = DefaultPolicyPattern
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("tabular: glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	tables := make([]*scenarios.PolicyTable, 0, len(matches))
	for _, match := range matches {
		if path.Base(match)[0] == '~' {
			// Excel lock files.
			continue
		}
		table, err := readPolicyTable(filepath.Join(dir, filepath.FromSlash(match)), match)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return scenarios.NewPolicyCatalog(tables...), nil
}
