package models

import "github.com/go-playground/validator/v10"

// validate is shared across all model validation; validator instances cache
// struct metadata and are safe for concurrent use.
var validate = validator.New()

// ValidateStruct checks validator tags on any model struct. Used to reject
// malformed AI-generated payloads before they reach decision logic.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
