package shared

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// validate is shared across all request types. Validator instances
// cache parsed struct tags, so one instance serves the whole package.
var validate = validator.New()

// DecodeJSON decodes the request body into dst. Unknown fields are
// rejected so that a misspelled parameter surfaces as an error instead
// of being silently dropped.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ValidateRequest checks dst against its validate struct tags. A type
// carrying its own Validate method is checked with that instead, letting
// domain rules take precedence over tag-level ones.
func ValidateRequest(dst any) error {
	if v, ok := dst.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return validate.Struct(dst)
}
