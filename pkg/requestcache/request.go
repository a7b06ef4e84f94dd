package requestcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Request is a single GraphQL request descriptor.
type Request struct {
	// Query is the GraphQL document
	Query string `json:"query"`

	// Variables is any JSON-serializable value (usually a map)
	Variables any `json:"variables"`
}

var operationPattern = regexp.MustCompile(`^\s*(?:query|mutation|subscription)\s+(\w+)`)

// OperationName returns the name of the first named operation in a GraphQL
// document, or "" for anonymous documents.
func OperationName(query string) string {
	m := operationPattern.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[1]
}

// Fingerprint generates the canonical cache key for a request.
// Format: {"query":"...","variables":{...}} with object keys sorted at every depth.
//
// Example:
//
//	{"query":"query q($username: String!) {...}","variables":{"limit":20,"username":"alice"}}
//
// Two requests whose variables differ only in key order share a fingerprint.
func Fingerprint(r Request) (string, error) {
	vars, err := canonicalize(r.Variables)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(Request{Query: r.Query, Variables: vars})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return string(data), nil
}

// canonicalize re-decodes v into generic JSON values. encoding/json writes map
// keys in sorted order, so the re-encoded form no longer depends on struct
// field order or the key order of raw JSON input.
func canonicalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal variables: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	// Keep numbers as written; float64 would collapse large integers
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return generic, nil
}
