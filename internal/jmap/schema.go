package jmap

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	emailImportSchema   *jsonschema.Schema
	sieveValidateSchema *jsonschema.Schema
)

func init() {
	emailImportSchema = mustCompileSchema("schemas/email_import.json")
	sieveValidateSchema = mustCompileSchema("schemas/sieve_validate.json")
}

// mustCompileSchema loads and compiles an embedded schema at package init.
// The schemas are fixed assets shipped with the binary, so a compile
// failure here is a build defect, not a runtime condition: panicking
// surfaces it immediately rather than on the first request.
func mustCompileSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("jmap: missing embedded schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("jmap: invalid embedded schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("jmap: schema %s failed to compile: %v", name, err))
	}
	return schema
}

// validateImportEmailArguments enforces that every entry of the Emails map
// satisfies the per-entry schema (blobId + non-empty mailboxIds), catching
// structurally-valid-JSON-but-semantically-wrong-shape arguments that the
// hand-written token walk in decodeImportEmail does not otherwise check,
// since Emails itself is decoded as opaque raw JSON.
func validateImportEmailArguments(req *ImportEmailRequest) error {
	if len(req.Emails) == 0 {
		return fmt.Errorf("emails: must not be empty")
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(req.Emails, &entries); err != nil {
		return fmt.Errorf("emails: must be an object keyed by creation id: %w", err)
	}
	for id, raw := range entries {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("emails[%s]: %w", id, err)
		}
		if err := emailImportSchema.Validate(v); err != nil {
			return fmt.Errorf("emails[%s]: %w", id, err)
		}
	}
	return nil
}

// validateSieveScriptArguments re-validates the decoded SieveScript/validate
// arguments against the published schema, defending against future fields
// added to the hand-written decoder without a matching schema update.
func validateSieveScriptArguments(req *ValidateSieveScriptRequest) error {
	doc := map[string]interface{}{
		"accountId": req.AccountID,
		"blobId":    req.BlobID,
	}
	return sieveValidateSchema.Validate(doc)
}
