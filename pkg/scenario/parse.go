package scenario

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var errInvalidUTF8 = errors.New("document is not valid UTF-8")

var utf8BOM = []byte("\xef\xbb\xbf")

var markdown = goldmark.New()

// ParseFile reads and parses the test document at path.
func ParseFile(path string) (Scenario, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, &ParseError{File: path, Err: err}
	}
	return Parse(path, source)
}

// Parse extracts a scenario from a Markdown document. name is only used in
// errors. Parsing is pure: the same source always yields the same scenario.
//
// The document is scanned once, top to bottom. The first level-1 heading is
// the title. Each level-2 heading selects the current section by its role
// (see RoleOf); deeper headings leave it unchanged. Under a narrative section
// the first paragraph is the description, under a steps section every
// ordered list contributes steps, and under an expectations section every
// bullet list contributes expectations. Everything else is ignored.
func Parse(name string, source []byte) (Scenario, error) {
	if !utf8.Valid(source) {
		return Scenario{}, &ParseError{File: name, Err: errInvalidUTF8}
	}
	source = bytes.TrimPrefix(source, utf8BOM)

	doc := markdown.Parser().Parse(text.NewReader(source))

	var (
		s       Scenario
		section Role
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			switch node.Level {
			case 1:
				if s.Title == "" {
					s.Title = blockText(node, source)
				}
			case 2:
				section = RoleOf(blockText(node, source))
			}

		case *ast.Paragraph:
			if section == RoleNarrative && s.Description == "" {
				s.Description = blockText(node, source)
			}

		case *ast.List:
			switch {
			case section == RoleSteps && node.IsOrdered():
				s.Steps = append(s.Steps, listItems(node, source)...)
			case section == RoleExpectations && !node.IsOrdered():
				s.Expectations = append(s.Expectations, listItems(node, source)...)
			}
		}
	}

	return s, nil
}

// listItems returns the first paragraph of every item of list, as written in
// the source. Nested lists are not descended into.
func listItems(list *ast.List, source []byte) []string {
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if !isParagraphLike(child) {
				continue
			}
			if t := blockText(child, source); t != "" {
				items = append(items, t)
			}
			break
		}
	}
	return items
}

// isParagraphLike matches loose (Paragraph) and tight (TextBlock) item content.
func isParagraphLike(n ast.Node) bool {
	switch n.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		return true
	default:
		return false
	}
}

// blockText returns the raw source lines of a block, trimmed, so inline
// Markdown such as code spans and links keeps its original spelling.
func blockText(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := range lines.Len() {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(source))))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
