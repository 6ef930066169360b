package config

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/multierr"
)

//go:embed schema.json
var schemaData []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaData)

// ValidationError describes one setting that failed schema validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// errorPriority orders schema failures so the most actionable comes first.
var errorPriority = map[string]int{
	"additional_property_not_allowed": 1,
	"invalid_type":                    2,
	"enum":                            3,
	"pattern":                         4,
	"number_gte":                      5,
}

// validate checks a decoded settings document against the embedded schema.
// Every failure is returned, combined with multierr.
func validate(document []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validating settings: %w", err)
	}
	if result.Valid() {
		return nil
	}

	failures := result.Errors()
	sort.SliceStable(failures, func(i, j int) bool {
		return priority(failures[i]) < priority(failures[j])
	})

	var errs error
	for _, failure := range failures {
		errs = multierr.Append(errs, &ValidationError{
			Field:   fieldName(failure),
			Message: friendlyMessage(failure),
		})
	}
	return errs
}

func priority(err gojsonschema.ResultError) int {
	if p, ok := errorPriority[err.Type()]; ok {
		return p
	}
	return len(errorPriority) + 1
}

func friendlyMessage(err gojsonschema.ResultError) string {
	name := fieldName(err)
	switch err.Type() {
	case "additional_property_not_allowed":
		return fmt.Sprintf("unknown setting '%s'", name)
	case "invalid_type":
		return fmt.Sprintf("setting '%s' has wrong type (expected %v)", name, err.Details()["expected"])
	case "enum":
		return fmt.Sprintf("setting '%s' must be one of: %v", name, err.Details()["allowed"])
	case "pattern":
		return fmt.Sprintf("setting '%s' must be a duration such as \"30s\"", name)
	case "number_gte":
		return fmt.Sprintf("setting '%s' must be at least %v", name, err.Details()["min"])
	default:
		return err.Description()
	}
}

// fieldName returns the setting a failure refers to. Unknown settings are
// reported against the root, with the name in the details.
func fieldName(err gojsonschema.ResultError) string {
	if err.Type() == "additional_property_not_allowed" {
		if property, ok := err.Details()["property"].(string); ok {
			return property
		}
	}
	return err.Field()
}
