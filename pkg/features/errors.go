package features

import "fmt"

type (
	//ValidationError reports a malformed or out of range input value
	ValidationError struct {
		Field  string
		Reason string
	}

	//UnknownCategoryError reports a categorical value outside the fitted vocabulary
	UnknownCategoryError struct {
		Feature string
		Value   string
	}

	//MissingFeatureError reports a required input field that was not supplied
	MissingFeatureError struct {
		Feature string
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for feature %s", e.Value, e.Feature)
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing required feature %s", e.Feature)
}
