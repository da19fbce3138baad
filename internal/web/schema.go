package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Joseda-hg/taskflow/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	credentialsSchema = mustCompileSchema("credentials.json")
	taskSchema        = mustCompileSchema("task.json")
)

func mustCompileSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}

	url := "https://taskflow.local/schemas/" + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decodeBody checks body against schema and then unmarshals it into target.
func decodeBody(body []byte, schema *jsonschema.Schema, target any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperr.Validation("Invalid JSON body")
	}
	if err := schema.Validate(doc); err != nil {
		return schemaError(err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return apperr.Validation("Invalid JSON body")
	}
	return nil
}

// schemaError reports the first leaf failure with its field path.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return apperr.Validation("Invalid request body")
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	if field == "" {
		return apperr.Validation("Invalid request body: " + leaf.Message)
	}
	return apperr.Validation(fmt.Sprintf("Invalid %s: %s", field, leaf.Message))
}
