// Package validation parses raw change payloads into typed requests.
// Nothing untyped flows past this boundary: the executor only ever sees
// a domain.ChangeRequest that passed every rule here.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// ChangePayload is the raw request body for a single change
type ChangePayload struct {
	ChangeID  string                 `json:"change_id"`
	Target    TargetPayload          `json:"target" validate:"required"`
	Operation OperationPayload       `json:"operation" validate:"required"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// TargetPayload is the raw target description
type TargetPayload struct {
	ConnectionURI string `json:"connection_uri" validate:"required"`
	Database      string `json:"database" validate:"required"`
}

// OperationPayload is the raw, tagged operation description
type OperationPayload struct {
	Type       string                 `json:"type" validate:"required"`
	Collection string                 `json:"collection" validate:"required"`
	Options    map[string]interface{} `json:"options"`
	Spec       KeySpec                `json:"spec"`
	Name       string                 `json:"name"`
	Unique     bool                   `json:"unique"`
	Partial    map[string]interface{} `json:"partial_filter_expression"`
}

var validate = validator.New()

// allowedFilterOperators is the fixed allowlist for operators inside a
// partialFilterExpression. Anything else is rejected at validation.
var allowedFilterOperators = map[string]bool{
	"$eq":     true,
	"$gt":     true,
	"$gte":    true,
	"$lt":     true,
	"$lte":    true,
	"$ne":     true,
	"$in":     true,
	"$nin":    true,
	"$exists": true,
	"$and":    true,
}

// ParseChange decodes and validates one raw change payload. On failure
// it returns a *domain.ValidationError enumerating every offending
// field.
func ParseChange(body []byte) (domain.ChangeRequest, error) {
	var payload ChangePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		verr := &domain.ValidationError{}
		verr.Add("body", fmt.Sprintf("invalid JSON: %v", err))
		return domain.ChangeRequest{}, verr
	}
	return ValidateChange(payload)
}

// ValidateChange type-checks an already-decoded payload
func ValidateChange(payload ChangePayload) (domain.ChangeRequest, error) {
	verr := &domain.ValidationError{}

	if err := validate.Struct(payload); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verr.Add(jsonPath(fe.Namespace()), "is required")
			}
		} else {
			verr.Add("body", err.Error())
		}
	}

	op, ok := buildOperation(payload.Operation, verr)
	if verr.HasErrors() {
		return domain.ChangeRequest{}, verr
	}
	if !ok {
		// unreachable: buildOperation records a field error whenever it
		// cannot produce an operation
		verr.Add("operation", "invalid operation")
		return domain.ChangeRequest{}, verr
	}

	return domain.ChangeRequest{
		ChangeID: payload.ChangeID,
		Target: domain.Target{
			ConnectionURI: payload.Target.ConnectionURI,
			Database:      payload.Target.Database,
		},
		Operation: op,
		Metadata:  payload.Metadata,
	}, nil
}

func buildOperation(p OperationPayload, verr *domain.ValidationError) (domain.Operation, bool) {
	switch domain.OperationKind(p.Type) {
	case domain.OpCreateCollection:
		return domain.CreateCollection{Collection: p.Collection, Options: p.Options}, true

	case domain.OpCreateIndex:
		if len(p.Spec) == 0 {
			verr.Add("operation.spec", "must be a non-empty field to direction mapping")
		}
		for _, k := range p.Spec {
			if k.Direction != 1 && k.Direction != -1 {
				verr.Add("operation.spec."+k.Field, fmt.Sprintf("direction must be 1 or -1, got %d", k.Direction))
			}
		}
		checkFilterOperators("operation.partial_filter_expression", p.Partial, verr)
		return domain.CreateIndex{
			Collection: p.Collection,
			Keys:       []domain.IndexKey(p.Spec),
			Options: domain.IndexOptions{
				Name:          p.Name,
				Unique:        p.Unique,
				PartialFilter: p.Partial,
			},
		}, true

	case "":
		// already reported by the required tag
		return nil, false

	default:
		verr.Add("operation.type", fmt.Sprintf("unsupported operation type %q", p.Type))
		return nil, false
	}
}

// checkFilterOperators walks a partialFilterExpression and rejects any
// object-shaped value using an operator outside the allowlist
func checkFilterOperators(path string, expr map[string]interface{}, verr *domain.ValidationError) {
	for field, value := range expr {
		if strings.HasPrefix(field, "$") && !allowedFilterOperators[field] {
			verr.Add(path+"."+field, fmt.Sprintf("operator %s is not allowed in a partial filter expression", field))
			continue
		}
		checkFilterValue(path+"."+field, value, verr)
	}
}

// checkFilterValue recurses through nested objects and array elements so
// disallowed operators cannot hide inside any container shape
func checkFilterValue(path string, value interface{}, verr *domain.ValidationError) {
	switch v := value.(type) {
	case map[string]interface{}:
		checkFilterOperators(path, v, verr)
	case []interface{}:
		for i, sub := range v {
			checkFilterValue(fmt.Sprintf("%s[%d]", path, i), sub, verr)
		}
	}
}

// jsonPath converts a validator namespace like
// "ChangePayload.Target.ConnectionURI" into "target.connection_uri"
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // drop the struct name
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	// field names here are short; handles the ones we declare
	switch s {
	case "ConnectionURI":
		return "connection_uri"
	case "ChangeID":
		return "change_id"
	case "Partial":
		return "partial_filter_expression"
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
