package verdict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// #region schemas
const checksSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["checks"],
	"properties": {
		"checks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "ok"],
				"properties": {
					"name": {"type": "string"},
					"ok": {"type": "boolean"},
					"message": {"type": ["string", "null"]}
				}
			}
		}
	}
}`

const frameDecisionSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["verdict"],
	"properties": {
		"verdict": {"type": "string"}
	}
}`

var (
	checksSchema        = mustCompile("checks.schema.json", checksSchemaJSON)
	frameDecisionSchema = mustCompile("frame-decision.schema.json", frameDecisionSchemaJSON)
)

func mustCompile(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://decision-gate.schemas.local/" + name
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	return c.MustCompile(url)
}

// #endregion schemas

// #region decode
// DecodeChecks validates a decoded authority response against the check-list
// contract and extracts the checks in their original order.
func DecodeChecks(doc any) ([]Check, error) {
	if err := checksSchema.Validate(doc); err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("check response: %v", err)}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("re-encode check response: %v", err)}
	}
	var body struct {
		Checks []Check `json:"checks"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("decode checks: %v", err)}
	}
	if body.Checks == nil {
		body.Checks = []Check{}
	}
	return body.Checks, nil
}

// DecodeRawDecision validates a decoded frame decision and keeps the whole
// object as the raw payload.
func DecodeRawDecision(doc any) (RawDecision, error) {
	if err := frameDecisionSchema.Validate(doc); err != nil {
		return RawDecision{}, &MalformedError{Reason: fmt.Sprintf("frame decision: %v", err)}
	}
	obj := doc.(map[string]any)
	return RawDecision{
		Verdict: obj["verdict"].(string),
		Payload: obj,
	}, nil
}

// DecodeJSON parses raw JSON into the generic form the schemas validate.
func DecodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	return doc, nil
}

// #endregion decode
