package docs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/etnz/espp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func TestTopics(t *testing.T) {
	// Every topic listed in readme.md can be loaded, and every .md file is
	// listed in readme.md.
	file, err := os.Open("readme.md")
	if err != nil {
		t.Fatalf("failed to open readme.md: %v", err)
	}
	defer file.Close()

	var listed []string
	scanner := bufio.NewScanner(file)
	topicRegex := regexp.MustCompile(`^\*\s+([^:]+):.*$`)
	for scanner.Scan() {
		if m := topicRegex.FindStringSubmatch(scanner.Text()); len(m) > 1 {
			listed = append(listed, strings.TrimSpace(m[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error scanning readme.md: %v", err)
	}

	for _, topic := range listed {
		if _, err := GetTopic(topic); err != nil {
			t.Errorf("failed to get topic %q: %v", topic, err)
		}
	}

	all, err := GetAllTopics()
	if err != nil {
		t.Fatal(err)
	}
	for _, topic := range all {
		if !slices.Contains(listed, topic) {
			t.Errorf("topic %q is not listed in readme.md", topic)
		}
	}

	if _, err := GetTopic("missing"); err == nil {
		t.Error("GetTopic(missing) succeeded, want an error")
	}
}

func TestAllTopics(t *testing.T) {
	all, err := GetTopic("*")
	if err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"# Transactions", "# Holdings", "# Strategies", "# Wires"} {
		if !strings.Contains(all, title) {
			t.Errorf("GetTopic(*) is missing %q", title)
		}
	}
}

// block is a fenced code block of a markdown file.
type block struct {
	Info    string
	Content string
	Line    int
}

// codeBlocks parses a markdown file and returns its fenced code blocks.
func codeBlocks(t *testing.T, file string) []block {
	t.Helper()
	content, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("failed to read %s: %v", file, err)
	}
	root := goldmark.DefaultParser().Parse(text.NewReader(content))

	var blocks []block
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok || fcb.Info == nil {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		for i := 0; i < fcb.Lines().Len(); i++ {
			line := fcb.Lines().At(i)
			b.Write(line.Value(content))
		}
		start := fcb.Info.Segment.Start
		blocks = append(blocks, block{
			Info:    string(fcb.Info.Segment.Value(content)),
			Content: b.String(),
			Line:    bytes.Count(content[:start], []byte{'\n'}) + 1,
		})
		return ast.WalkContinue, nil
	})
	return blocks
}

// TestCodeBlocks decodes every example of the documentation with the
// decoder of its format.
func TestCodeBlocks(t *testing.T) {
	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, file := range files {
		for _, b := range codeBlocks(t, file) {
			r := strings.NewReader(b.Content)
			switch b.Info {
			case "jsonl transactions":
				_, err = espp.DecodeTransactions(r)
			case "json holdings":
				_, err = espp.DecodeHoldings(r)
			case "jsonl wires":
				_, err = espp.DecodeWires(r)
			case "json":
				err = json.NewDecoder(r).Decode(new(any))
			default:
				continue
			}
			count++
			if err != nil {
				t.Errorf("%s:%d: invalid %s example: %v", file, b.Line, b.Info, err)
			}
		}
	}
	if count == 0 {
		t.Error("no example found in the documentation")
	}
}
