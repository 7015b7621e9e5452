package validate

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// cellSchemaURL is the resource name the cell's own schema is compiled under.
const cellSchemaURL = "scratchpad://cell/schema.json"

var printer = message.NewPrinter(language.English)

// CheckSchema compiles a schema definition on its own. Registry references
// are not resolved here, so a schema that $refs a sibling entry is still
// accepted as long as it is structurally valid.
func CheckSchema(schema map[string]any) error {
	if schema == nil {
		return scerrors.NewValidation("schema must be a JSON object")
	}
	c := newCompiler()
	if err := c.AddResource(cellSchemaURL, schema); err != nil {
		return invalidSchema(err)
	}
	if _, err := c.Compile(cellSchemaURL); err != nil {
		var sve *jsonschema.SchemaValidationError
		if stderrors.As(err, &sve) {
			return invalidSchema(err)
		}
		// Unresolvable references only matter at validation time.
		if !strings.Contains(err.Error(), notebook.SchemaRefPrefix) {
			return invalidSchema(err)
		}
	}
	return nil
}

func invalidSchema(err error) error {
	return scerrors.NewValidation("invalid JSON schema").WithDetail("error", err.Error())
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	return c
}

// coerceSchema turns a cell's json_schema value into a schema object. It
// returns nil with the problem recorded on result when nothing can be
// applied. The second value is the registry name when the schema is a
// scratchpad://schemas/<name> reference.
func coerceSchema(raw any, registry notebook.Registry, result *Result) (map[string]any, string) {
	var schema map[string]any
	var ref string

	switch v := raw.(type) {
	case nil:
		return nil, ""
	case map[string]any:
		schema = v
		ref = directRef(v)
	case string:
		if name, ok := notebook.SchemaRefName(v); ok {
			schema = map[string]any{"$ref": v}
			ref = name
			break
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			line, col := jsonErrorPosition(v, err)
			result.AddError("Invalid JSON schema string: "+jsonErrorMessage(err), "",
				map[string]any{"line": line, "column": col})
			return nil, ""
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			result.AddError(schemaStringNotObject, "", nil)
			return nil, ""
		}
		schema = obj
		ref = directRef(obj)
	default:
		result.AddError(schemaWrongType, "", nil)
		return nil, ""
	}

	if ref != "" {
		if _, ok := registry[ref]; !ok {
			result.AddWarning(fmt.Sprintf("JSON schema reference '%s' not found in scratchpad metadata", ref),
				CodeSchemaRefMissing)
			result.SetDetail("schema_ref", ref)
			return nil, ref
		}
	}
	return schema, ref
}

func directRef(schema map[string]any) string {
	if s, ok := schema["$ref"].(string); ok {
		if name, ok := notebook.SchemaRefName(s); ok {
			return name
		}
	}
	return ""
}

// applySchema validates instance against schema with every registry entry
// available as scratchpad://schemas/<name>.
func applySchema(instance any, schema map[string]any, ref string, registry notebook.Registry, result *Result) {
	c := newCompiler()
	for name, entry := range registry {
		if entry.Schema == nil {
			continue
		}
		if err := c.AddResource(notebook.SchemaRefPrefix+name, entry.Schema); err != nil {
			result.AddError(fmt.Sprintf("Invalid JSON schema '%s': %v", name, err), "", nil)
			return
		}
	}
	if err := c.AddResource(cellSchemaURL, schema); err != nil {
		result.AddError(fmt.Sprintf("Invalid JSON schema: %v", err), "", nil)
		return
	}

	compiled, err := c.Compile(cellSchemaURL)
	if err != nil {
		var sve *jsonschema.SchemaValidationError
		if stderrors.As(err, &sve) {
			result.AddError(fmt.Sprintf("Invalid JSON schema: %v", sve.Err), "", nil)
			return
		}
		result.AddError(fmt.Sprintf("JSON schema reference '%s' could not be resolved", refDisplay(ref, err)), "",
			map[string]any{"reference": err.Error()})
		if ref != "" {
			result.SetDetail("schema_ref", ref)
		}
		return
	}

	if err := compiled.Validate(jsonValue(instance)); err != nil {
		var ve *jsonschema.ValidationError
		if !stderrors.As(err, &ve) {
			result.AddError(fmt.Sprintf("JSON schema validation failed: %v", err), "", nil)
			return
		}
		leaf := leafError(ve)
		result.AddError("JSON schema validation failed: "+leaf.ErrorKind.LocalizedString(printer), "",
			map[string]any{"path": instancePath(leaf.InstanceLocation)})
		if ref != "" {
			result.SetDetail("schema_ref", ref)
		}
		return
	}

	result.SetDetail("schema_applied", true)
	if ref != "" {
		result.SetDetail("schema_ref", ref)
	}
}

func refDisplay(ref string, err error) string {
	if ref != "" {
		return ref
	}
	return err.Error()
}

// leafError follows the first cause down to the most specific failure.
func leafError(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

func instancePath(location []string) []string {
	if location == nil {
		return []string{}
	}
	return location
}

// jsonValue rewrites decoded YAML into the JSON data model: map keys become
// strings and timestamps become RFC 3339 strings.
func jsonValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = jsonValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[fmt.Sprint(k)] = jsonValue(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			out[i] = jsonValue(val)
		}
		return out
	case time.Time:
		return tv.Format(time.RFC3339)
	default:
		return v
	}
}
