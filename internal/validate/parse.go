package validate

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseJSON decodes content, keeping numbers as json.Number so schema
// checks see integers exactly.
func parseJSON(content string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &trailingDataError{offset: dec.InputOffset()}
	}
	return v, nil
}

// trailingDataError reports content after the first complete JSON value.
type trailingDataError struct {
	offset int64
}

func (e *trailingDataError) Error() string { return "Extra data" }

func jsonErrorMessage(err error) string {
	switch {
	case stderrors.Is(err, io.EOF), stderrors.Is(err, io.ErrUnexpectedEOF):
		return "Expecting value"
	default:
		return err.Error()
	}
}

// jsonErrorPosition maps a decode error's byte offset to a 1-based line and column.
func jsonErrorPosition(content string, err error) (int, int) {
	offset := int64(len(content))
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	var tde *trailingDataError
	switch {
	case stderrors.As(err, &tde):
		offset = tde.offset
	case stderrors.As(err, &se):
		offset = se.Offset
	case stderrors.As(err, &te):
		offset = te.Offset
	}
	return lineColumn(content, offset)
}

func lineColumn(content string, offset int64) (int, int) {
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	if offset < 0 {
		offset = 0
	}
	prefix := content[:offset]
	line := strings.Count(prefix, "\n") + 1
	col := int(offset) - strings.LastIndex(prefix, "\n")
	return line, col
}

// parseYAML decodes the first YAML document. An empty document yields nil.
func parseYAML(content string) (any, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	var v any
	if err := dec.Decode(&v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func yamlErrorMessage(err error) string {
	return fmt.Sprintf("Invalid YAML: %s", strings.TrimPrefix(err.Error(), "yaml: "))
}
