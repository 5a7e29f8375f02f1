//go:build ignore

// Command generate-eval-corpus creates a synthetic codebase plus a
// gold-labeled task file for exercising the retrieval pipeline at scale.
// Usage: go run scripts/generate-eval-corpus.go -files 500 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of source files to generate")
	numTasks  = flag.Int("tasks", 50, "Number of gold-labeled tasks to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var domains = []string{
	"billing", "auth", "inventory", "search", "metrics",
	"session", "gateway", "scheduler", "notifier", "ledger",
}

var verbs = []string{
	"create", "update", "delete", "validate", "sync",
	"publish", "archive", "rotate", "replay", "merge",
}

var nouns = []string{
	"account", "invoice", "token", "record", "snapshot",
	"order", "receipt", "policy", "quota", "webhook",
}

const goFileTemplate = `package %s

import "fmt"

// %s handles the %s %s workflow.
func %s(id string) error {
	if id == "" {
		return fmt.Errorf("%s: empty id")
	}
	fmt.Println("%s", id)
	return nil
}
`

const pyFileTemplate = `"""%s %s handling."""


def %s(record_id):
    """%s a %s by id."""
    if not record_id:
        raise ValueError("empty id")
    return {"id": record_id, "action": "%s"}
`

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fatal(err)
	}

	type entry struct {
		path string
		verb string
		noun string
	}
	entries := make([]entry, 0, *numFiles)

	for i := 0; i < *numFiles; i++ {
		domain := domains[rng.Intn(len(domains))]
		verb := verbs[rng.Intn(len(verbs))]
		noun := nouns[rng.Intn(len(nouns))]
		fn := verb + "_" + noun

		var rel, content string
		if i%2 == 0 {
			camel := strings.Title(verb) + strings.Title(noun)
			rel = filepath.Join(domain, fmt.Sprintf("%s_%d.go", fn, i))
			content = fmt.Sprintf(goFileTemplate, domain, camel, domain, noun, camel, fn, fn)
		} else {
			rel = filepath.Join(domain, fmt.Sprintf("%s_%d.py", fn, i))
			content = fmt.Sprintf(pyFileTemplate, domain, noun, fn, strings.Title(verb), noun, verb)
		}

		path := filepath.Join(*outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fatal(err)
		}
		entries = append(entries, entry{path: filepath.ToSlash(rel), verb: verb, noun: noun})
	}

	// Tasks: each picks one generated file and phrases a request its
	// terms should retrieve.
	var tasks strings.Builder
	tasks.WriteString("tasks:\n")
	for i := 0; i < *numTasks && i < len(entries); i++ {
		e := entries[rng.Intn(len(entries))]
		fmt.Fprintf(&tasks, "  task-%03d:\n", i)
		fmt.Fprintf(&tasks, "    query: \"%s the %s record\"\n", e.verb, e.noun)
		fmt.Fprintf(&tasks, "    relevant:\n")
		fmt.Fprintf(&tasks, "      - %s\n", e.path)
	}
	if err := os.WriteFile(filepath.Join(*outputDir, "tasks.yaml"), []byte(tasks.String()), 0o644); err != nil {
		fatal(err)
	}

	fmt.Printf("generated %d files and %d tasks under %s\n", *numFiles, *numTasks, *outputDir)
	fmt.Printf("run: patchrag index %s && cd %s && patchrag eval tasks.yaml --by-file\n", *outputDir, *outputDir)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
