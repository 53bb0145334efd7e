package commands

import (
	"strconv"
)

// helper functions for formatting floats and integers
func f(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
func i(i int64) string {
	return strconv.FormatInt(i, 10)
}

// p formats a probability with the four decimals confidences are rounded to
func p(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}

// optional formats pointer fields of a flow record, "-" marks absent values
func optionalInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return i(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return f(*v)
}

func optionalString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
