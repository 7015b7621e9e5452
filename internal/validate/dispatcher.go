package validate

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// codeLanguages are validated through the SyntaxChecker.
var codeLanguages = map[string]bool{
	"py": true, "js": true, "ts": true, "tsx": true, "jsx": true, "rs": true,
	"c": true, "h": true, "cpp": true, "hpp": true, "sh": true, "css": true,
	"html": true, "htm": true, "java": true, "go": true, "rb": true,
	"toml": true, "php": true, "cs": true,
}

// Dispatcher routes a cell to the validator for its language. A nil
// Markdown or Syntax backend degrades to a VALIDATION_SKIPPED warning and
// is logged once.
type Dispatcher struct {
	Markdown MarkdownAnalyzer
	Syntax   SyntaxChecker
	Logger   *slog.Logger

	markdownMissing sync.Once
	syntaxMissing   sync.Once
}

// NewDispatcher returns a dispatcher with the goldmark analyzer and the
// built-in syntax checker.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Markdown: NewGoldmarkAnalyzer(),
		Syntax:   BuiltinChecker{},
		Logger:   logger,
	}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// ValidateCell validates one cell against the pad's schema registry.
func (d *Dispatcher) ValidateCell(cell notebook.Cell, registry notebook.Registry) *Result {
	result := newResult(cell.Index, cell.CellID, cell.Language)
	lang := strings.ToLower(cell.Language)
	switch {
	case lang == "json":
		d.validateJSON(cell, registry, result)
	case lang == "yaml" || lang == "yml":
		d.validateYAML(cell, registry, result)
	case lang == "md":
		d.validateMarkdown(cell, result)
	case lang == "txt":
		result.AddWarning(NotValidatedMessage, CodeSkipped)
		result.SetDetail("reason", plainTextSkippedReason)
	case codeLanguages[lang]:
		d.validateCode(cell, result)
	default:
		result.AddWarning(NotValidatedMessage, CodeSkipped)
		result.SetDetail("reason", NotValidatedMessage)
	}
	return result
}

func (d *Dispatcher) validateJSON(cell notebook.Cell, registry notebook.Registry, result *Result) {
	parsed, err := parseJSON(cell.Content)
	if err != nil {
		line, col := jsonErrorPosition(cell.Content, err)
		result.AddError("Invalid JSON: "+jsonErrorMessage(err), "", map[string]any{"line": line, "column": col})
		return
	}
	if cell.JSONSchema == nil {
		return
	}
	schema, ref := coerceSchema(cell.JSONSchema, registry, result)
	if schema == nil {
		return
	}
	applySchema(parsed, schema, ref, registry, result)
}

func (d *Dispatcher) validateYAML(cell notebook.Cell, registry notebook.Registry, result *Result) {
	parsed, err := parseYAML(cell.Content)
	if err != nil {
		result.AddError(yamlErrorMessage(err), "", nil)
		return
	}
	if cell.JSONSchema == nil || parsed == nil {
		return
	}
	schema, ref := coerceSchema(cell.JSONSchema, registry, result)
	if schema == nil {
		return
	}
	applySchema(parsed, schema, ref, registry, result)
}

func (d *Dispatcher) validateMarkdown(cell notebook.Cell, result *Result) {
	if d.Markdown == nil {
		d.markdownMissing.Do(func() {
			d.logger().Warn("markdown analyzer unavailable; markdown diagnostics disabled")
		})
		result.AddWarning(MarkdownSkippedMessage, CodeSkipped)
		return
	}
	analysis, err := d.Markdown.Analyze(cell.Content)
	if err != nil {
		result.AddWarning(fmt.Sprintf("Markdown analysis failed: %v", err), "")
		result.SetDetail("analysis_error", err.Error())
		return
	}
	applyAnalysis(analysis, result)
}

func (d *Dispatcher) validateCode(cell notebook.Cell, result *Result) {
	if d.Syntax == nil {
		d.syntaxMissing.Do(func() {
			d.logger().Warn("syntax checker unavailable; code validation disabled")
		})
		result.AddWarning(SyntaxSkippedMessage, CodeSkipped)
		result.SetDetail("reason", SyntaxSkippedMessage)
		return
	}
	analysis, err := d.Syntax.Check(strings.ToLower(cell.Language), cell.Content)
	if stderrors.Is(err, ErrUnsupportedLanguage) {
		result.AddWarning(SyntaxSkippedMessage, CodeSkipped)
		result.SetDetail("reason", SyntaxSkippedMessage)
		return
	}
	if err != nil {
		result.AddWarning(fmt.Sprintf("Syntax checker failed: %v", err), "")
		result.SetDetail("syntax_error", err.Error())
		return
	}
	applyAnalysis(analysis, result)
}

func applyAnalysis(a Analysis, result *Result) {
	for _, w := range a.Warnings {
		result.AddWarning(w, "")
	}
	for _, e := range a.Errors {
		result.AddError(e, "", nil)
	}
}

// ValidateCells validates cells concurrently and returns results in input
// order. A non-positive timeout waits indefinitely. Running out of time, or
// ctx ending first, yields VALIDATION_TIMEOUT; results already computed are
// discarded.
func (d *Dispatcher) ValidateCells(ctx context.Context, cells []notebook.Cell, registry notebook.Registry, timeout time.Duration) ([]*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make([]*Result, len(cells))
	done := make(chan struct{})
	var g errgroup.Group
	go func() {
		defer close(done)
		for i := range cells {
			g.Go(func() error {
				results[i] = d.ValidateCell(cells[i], registry)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		return nil, scerrors.NewValidationTimeout()
	}
}
