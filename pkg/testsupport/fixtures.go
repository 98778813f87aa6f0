package testsupport

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/goliatone/go-optimistic-cache/store"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv rewrites golden files from actual output when set to a non-empty value.
const UpdateGoldenEnv = "UPDATE_GOLDEN"

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureYAML loads YAML test data from a fixture file and unmarshals it into dest.
func LoadFixtureYAML(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := yaml.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal YAML fixture from %s: %v", path, err)
	}
}

// LoadEntities reads a YAML list of entities, sorted by id.
func LoadEntities(t *testing.T, path string) []store.Entity {
	t.Helper()

	var entities []store.Entity
	LoadFixtureYAML(t, path, &entities)
	for i, e := range entities {
		if e.ID == "" {
			t.Fatalf("entity %d in %s has no entityId", i, path)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities
}

// WriteGolden writes test output to a golden file, creating parent directories.
func WriteGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareYAMLWithGolden decodes actual and the golden file and compares the values,
// so key order and formatting do not matter. With UPDATE_GOLDEN set the golden file
// is rewritten instead.
func CompareYAMLWithGolden(t *testing.T, path string, actual []byte) {
	t.Helper()

	if os.Getenv(UpdateGoldenEnv) != "" {
		WriteGolden(t, path, actual)
		return
	}

	var got, want any
	if err := yaml.Unmarshal(actual, &got); err != nil {
		t.Fatalf("actual output is not YAML: %v\n%s", err, actual)
	}
	LoadFixtureYAML(t, path, &want)

	if !reflect.DeepEqual(got, want) {
		expected := LoadFixture(t, path)
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// TempFile writes content to a file inside the test's temporary directory and
// returns its path. name sets the file extension viper and friends look at.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write temp file %s: %v", path, err)
	}
	return path
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
