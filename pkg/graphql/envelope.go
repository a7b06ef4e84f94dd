package graphql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UserNotFoundMessage is LeetCode's error for an unknown username.
const UserNotFoundMessage = "User matching query does not exist."

// Error is one entry of a GraphQL "errors" array.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Envelope is the top-level shape of a GraphQL response.
type Envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// DecodeEnvelope parses a GraphQL response document.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	return &env, nil
}

// HasErrors reports whether the response carried GraphQL errors.
func (e *Envelope) HasErrors() bool {
	return len(e.Errors) > 0
}

// UserNotFound reports whether any error is LeetCode's unknown-user message.
func (e *Envelope) UserNotFound() bool {
	for _, gqlErr := range e.Errors {
		if strings.Contains(gqlErr.Message, UserNotFoundMessage) {
			return true
		}
	}
	return false
}

// DecodeData unmarshals the data member into v. A null data member leaves
// v untouched.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}
