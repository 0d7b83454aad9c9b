package transform

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// TestFile_Golden transforms every fixture under testdata and compares
// the output against the file of the same name under testdata/golden.
func TestFile_Golden(t *testing.T) {
	inputs, err := filepath.Glob(filepath.Join("testdata", "*.dart"))
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) == 0 {
		t.Fatal("no fixtures under testdata")
	}

	for _, input := range inputs {
		name := filepath.Base(input)
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(input)
			if err != nil {
				t.Fatalf("reading fixture: %v", err)
			}

			res, err := File("lib/"+name, src)
			if err != nil {
				t.Fatalf("File: %v", err)
			}

			goldenPath := filepath.Join("testdata", "golden", name)
			if *update {
				if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(goldenPath, res.Output, 0o644); err != nil {
					t.Fatal(err)
				}
				return
			}

			golden, err := os.ReadFile(goldenPath)
			if err != nil {
				t.Fatalf("reading golden file: %v\nRun with -update to create it.", err)
			}
			if string(res.Output) != string(golden) {
				t.Errorf("output differs from %s\n--- got ---\n%s\n--- want ---\n%s",
					goldenPath, res.Output, golden)
			}
		})
	}
}
