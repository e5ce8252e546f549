package viewer

import (
	"fmt"
	"strings"

	"github.com/playtest/playtest/model"
	"github.com/xeipuuv/gojsonschema"
)

// reportSchema is the part of the artifact contract the viewer relies on.
// Unknown fields are allowed so artifacts from the pytest plugin load too.
const reportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["metadata", "test_data"],
	"properties": {
		"metadata": {
			"type": "array",
			"items": {"type": "object"}
		},
		"collect_data": {
			"type": "array",
			"items": {"type": "object"}
		},
		"test_data": {
			"type": "array",
			"items": {"$ref": "#/definitions/phase"}
		}
	},
	"definitions": {
		"phase": {
			"type": "object",
			"required": ["nodeid", "when", "outcome", "duration"],
			"properties": {
				"nodeid": {"type": "string"},
				"when": {"type": "string", "enum": ["setup", "call", "teardown"]},
				"outcome": {"type": "string", "enum": ["passed", "failed", "skipped"]},
				"duration": {"type": "number", "minimum": 0}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(reportSchema)

// validateSchema checks data against the artifact contract.
func validateSchema(file string, data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &model.ParseError{File: file, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return &model.ParseError{File: file, Message: "schema validation failed: " + strings.Join(msgs, "; ")}
	}
	return nil
}
