package classify

import (
	"errors"

	"github.com/activecm/flowguard/pkg/features"
	"github.com/activecm/flowguard/pkg/inference"
)

// Error kinds reported at the service boundary
const (
	KindValidation      = "validation"
	KindUnknownCategory = "unknown_category"
	KindMissingFeature  = "missing_feature"
	KindInference       = "inference"
	KindInternal        = "internal"
)

// KindOf maps an error returned by the service to its reported kind
func KindOf(err error) string {
	var (
		validation *features.ValidationError
		unknown    *features.UnknownCategoryError
		missing    *features.MissingFeatureError
		inferErr   *inference.InferenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unknown):
		return KindUnknownCategory
	case errors.As(err, &missing):
		return KindMissingFeature
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &inferErr):
		return KindInference
	}
	return KindInternal
}

// IsClientError reports whether err was caused by the submitted record rather
// than by the service itself
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindUnknownCategory, KindMissingFeature:
		return true
	}
	return false
}
