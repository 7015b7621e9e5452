package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/scratchpad/internal/errors"
)

// decode unmarshals MCP request arguments into a typed struct. Shape
// mismatches, such as a string where an object belongs, are reported as
// VALIDATION_ERROR with the offending field.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewValidation("arguments must be a JSON object")
	}
	if err := json.Unmarshal(b, &result); err != nil {
		verr := errors.NewValidation("invalid arguments: " + err.Error())
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok && typeErr.Field != "" {
			verr.WithDetail("field", typeErr.Field)
		}
		return result, verr
	}
	return result, nil
}
