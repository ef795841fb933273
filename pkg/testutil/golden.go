// Package testutil holds golden file helpers shared by package tests.
//
// Run `go test ./... -update` to rewrite golden files from the current output.
package testutil

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// CompareGolden compares actual against the text stored in goldenPath and
// reports the first differing line.
func CompareGolden(t *testing.T, goldenPath string, actual string) {
	t.Helper()

	if *update {
		writeGolden(t, goldenPath, []byte(actual))
		return
	}

	expected := string(readGolden(t, goldenPath))
	if actual != expected {
		t.Errorf("Golden file mismatch for %s: %s\nExpected:\n%s\nActual:\n%s",
			goldenPath, firstDiff(expected, actual), expected, actual)
	}
}

// CompareGoldenSlice compares actual against a JSON string array stored in
// goldenPath.
func CompareGoldenSlice(t *testing.T, goldenPath string, actual []string) {
	t.Helper()

	if *update {
		data, err := json.MarshalIndent(actual, "", "  ")
		if err != nil {
			t.Fatalf("Failed to marshal slice to JSON: %v", err)
		}
		writeGolden(t, goldenPath, append(data, '\n'))
		return
	}

	var expected []string
	if err := json.Unmarshal(readGolden(t, goldenPath), &expected); err != nil {
		t.Fatalf("Failed to parse JSON from golden file %s: %v", goldenPath, err)
	}
	if !slices.Equal(actual, expected) {
		t.Errorf("Golden file mismatch for %s\nExpected: %q\nActual:   %q", goldenPath, expected, actual)
	}
}

func readGolden(t *testing.T, goldenPath string) []byte {
	t.Helper()

	content, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("Failed to read golden file %s: %v", goldenPath, err)
	}
	return content
}

func writeGolden(t *testing.T, goldenPath string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", goldenPath, err)
	}
	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		t.Fatalf("Failed to update golden file %s: %v", goldenPath, err)
	}
	t.Logf("Updated golden file: %s", goldenPath)
}

// firstDiff describes the first line where expected and actual disagree.
func firstDiff(expected, actual string) string {
	exp := strings.Split(expected, "\n")
	act := strings.Split(actual, "\n")
	for i := range min(len(exp), len(act)) {
		if exp[i] != act[i] {
			return fmt.Sprintf("line %d: expected %q, got %q", i+1, exp[i], act[i])
		}
	}
	return fmt.Sprintf("line count %d, expected %d", len(act), len(exp))
}
