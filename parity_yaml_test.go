package ruchy

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// Golden programs live in testdata/parity.yaml so new cases can be added
// without touching Go code. Each case runs on both engines and must render
// to the same expected string.
type parityCase struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Want   string `yaml:"want"`
}

type parityFile struct {
	Cases []parityCase `yaml:"cases"`
}

func loadParityCases(t *testing.T) []parityCase {
	t.Helper()
	raw, err := os.ReadFile("testdata/parity.yaml")
	if err != nil {
		t.Fatalf("read fixtures: %v", err)
	}
	var f parityFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		t.Fatalf("parse fixtures: %v", err)
	}
	if len(f.Cases) == 0 {
		t.Fatal("no fixture cases")
	}
	return f.Cases
}

func TestGoldenPrograms(t *testing.T) {
	for _, tc := range loadParityCases(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Name == "" || strings.TrimSpace(tc.Source) == "" {
				t.Fatalf("malformed case: %+v", tc)
			}
			iv, err := RunSource(tc.Source)
			if err != nil {
				t.Fatalf("tree walker: %v", err)
			}
			if got := FormatValue(iv); got != tc.Want {
				t.Fatalf("tree walker: want %s, got %s", tc.Want, got)
			}
			cv, err := CompileAndRun(tc.Source)
			if err != nil {
				t.Fatalf("vm: %v", err)
			}
			if got := FormatValue(cv); got != tc.Want {
				t.Fatalf("vm: want %s, got %s", tc.Want, got)
			}
			if !Equal(iv, cv) {
				t.Fatalf("engines disagree: %s vs %s", FormatValue(iv), FormatValue(cv))
			}
		})
	}
}
