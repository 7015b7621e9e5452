package validate

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Analysis holds the diagnostics produced by an analyzer or checker.
type Analysis struct {
	Errors   []string
	Warnings []string
}

// MarkdownAnalyzer inspects markdown content.
type MarkdownAnalyzer interface {
	Analyze(content string) (Analysis, error)
}

// GoldmarkAnalyzer walks the goldmark AST and reports structural problems:
// unclosed code fences are errors; skipped heading levels, placeholder-only
// sections, empty link targets and images without alt text are warnings.
type GoldmarkAnalyzer struct {
	md goldmark.Markdown
}

// NewGoldmarkAnalyzer returns an analyzer using goldmark's CommonMark parser.
func NewGoldmarkAnalyzer() *GoldmarkAnalyzer {
	return &GoldmarkAnalyzer{md: goldmark.New()}
}

// Analyze implements MarkdownAnalyzer.
func (a *GoldmarkAnalyzer) Analyze(content string) (Analysis, error) {
	var out Analysis
	src := []byte(content)

	if line, ok := unclosedFence(content); ok {
		out.Errors = append(out.Errors, fmt.Sprintf("Unclosed fenced code block starting on line %d", line))
	}

	doc := a.md.Parser().Parse(text.NewReader(src))
	prevLevel := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(inlineText(node, src))
			if prevLevel > 0 && node.Level > prevLevel+1 {
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("Heading '%s' skips from level %d to %d", title, prevLevel, node.Level))
			}
			prevLevel = node.Level
			if placeholderSection(node, src) {
				out.Warnings = append(out.Warnings, fmt.Sprintf("Section '%s' has only placeholder content", title))
			}
		case *ast.Link:
			if len(bytes.TrimSpace(node.Destination)) == 0 {
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("Link '%s' has an empty destination", strings.TrimSpace(inlineText(node, src))))
			}
		case *ast.Image:
			if strings.TrimSpace(inlineText(node, src)) == "" {
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("Image '%s' has no alt text", string(node.Destination)))
			}
		}
		return ast.WalkContinue, nil
	})
	return out, err
}

// inlineText concatenates the text segments under n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
			continue
		}
		buf.WriteString(inlineText(c, src))
	}
	return buf.String()
}

// placeholderPatterns are section bodies that say nothing (case-insensitive, trimmed).
var placeholderPatterns = []string{
	"(pending)", "(none)", "(empty)", "(tbd)", "(n/a)",
	"tbd", "n/a", "none", "pending", "-",
}

// placeholderSection reports whether the blocks between heading and the next
// heading hold only a placeholder. An empty section does not count.
func placeholderSection(heading *ast.Heading, src []byte) bool {
	var body strings.Builder
	for n := heading.NextSibling(); n != nil; n = n.NextSibling() {
		if _, ok := n.(*ast.Heading); ok {
			break
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(src))
		}
	}
	trimmed := strings.ToLower(strings.TrimSpace(body.String()))
	return trimmed != "" && slices.Contains(placeholderPatterns, trimmed)
}

// fencePattern matches fenced code block delimiters (``` or ~~~) with up to
// three spaces of indentation.
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

// unclosedFence pairs fence delimiters the CommonMark way (a closing fence
// uses the same character and is at least as long) and returns the 1-based
// line of an opening fence left without a partner.
func unclosedFence(content string) (int, bool) {
	var openChar byte
	var openLen, openStart int
	inFence := false

	for _, m := range fencePattern.FindAllStringSubmatchIndex(content, -1) {
		fence := content[m[2]:m[3]]
		switch {
		case !inFence:
			openChar, openLen, openStart = fence[0], len(fence), m[0]
			inFence = true
		case fence[0] == openChar && len(fence) >= openLen:
			inFence = false
		}
	}
	if !inFence {
		return 0, false
	}
	return strings.Count(content[:openStart], "\n") + 1, true
}
