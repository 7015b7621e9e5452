package validate

import (
	stderrors "errors"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrUnsupportedLanguage is returned by a SyntaxChecker that has no parser for a language.
var ErrUnsupportedLanguage = stderrors.New("unsupported language")

// SyntaxChecker parses source code for a language.
type SyntaxChecker interface {
	Check(language, code string) (Analysis, error)
}

// BuiltinChecker parses Go with go/parser and TOML with BurntSushi/toml.
// Every other language is unsupported.
type BuiltinChecker struct{}

// Check implements SyntaxChecker.
func (BuiltinChecker) Check(language, code string) (Analysis, error) {
	switch strings.ToLower(language) {
	case "go":
		return checkGo(code), nil
	case "toml":
		return checkTOML(code), nil
	default:
		return Analysis{}, ErrUnsupportedLanguage
	}
}

// goWrappers are tried in order; a cell may hold a whole file, top-level
// declarations, or a bare statement list. offset is the number of lines the
// wrapper adds before the cell.
var goWrappers = []struct {
	prefix, suffix string
	offset         int
}{
	{"", "", 0},
	{"package cell\n", "", 1},
	{"package cell\nfunc _() {\n", "\n}", 2},
}

func checkGo(code string) Analysis {
	startsWithPackage := strings.HasPrefix(strings.TrimSpace(code), "package ")
	var first scanner.ErrorList
	var firstOffset int
	for i, w := range goWrappers {
		if startsWithPackage && i > 0 {
			break
		}
		if !startsWithPackage && i == 0 {
			continue
		}
		fset := token.NewFileSet()
		_, err := parser.ParseFile(fset, "cell.go", w.prefix+code+w.suffix, parser.AllErrors)
		if err == nil {
			return Analysis{}
		}
		var list scanner.ErrorList
		if !stderrors.As(err, &list) {
			return Analysis{Errors: []string{err.Error()}}
		}
		if first == nil {
			first, firstOffset = list, w.offset
		}
	}

	var out Analysis
	for _, e := range first {
		out.Errors = append(out.Errors, fmt.Sprintf("line %d, column %d: %s",
			max(e.Pos.Line-firstOffset, 1), e.Pos.Column, e.Msg))
	}
	return out
}

func checkTOML(code string) Analysis {
	var v map[string]any
	_, err := toml.Decode(code, &v)
	if err == nil {
		return Analysis{}
	}
	var pe toml.ParseError
	if stderrors.As(err, &pe) {
		return Analysis{Errors: []string{fmt.Sprintf("line %d: %s", pe.Position.Line, pe.Message)}}
	}
	return Analysis{Errors: []string{err.Error()}}
}
