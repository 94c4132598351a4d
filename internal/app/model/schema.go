package model

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the published result schema.
const SchemaID = "https://github.com/whisper-transcribe/schemas/result.json"

// Schema returns the JSON Schema of Result. The two result shapes are
// expressed with oneOf keyed on the success flag.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: false,
	}

	schema := reflector.Reflect(&Result{})
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Transcription result"
	schema.Description = "Single JSON document written to stdout by the transcribe command"

	schema.OneOf = []*jsonschema.Schema{
		variant(true, "success", "transcript", "language", "duration"),
		variant(false, "success", "error"),
	}
	return schema
}

func variant(success bool, required ...string) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("success", &jsonschema.Schema{Const: success})
	return &jsonschema.Schema{
		Properties: props,
		Required:   required,
	}
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
