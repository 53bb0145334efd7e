package inference

import (
	"fmt"
	"strings"
)

// Convention selects how class indices are turned into labels
type Convention int

const (
	//Binary reports index 0 as benign and index 1 as malicious
	Binary Convention = iota
	//Multiclass decodes indices through the fitted label table
	Multiclass
)

// Labels reported under the binary convention
const (
	BenignLabel    = "benign"
	MaliciousLabel = "malicious"
)

// ParseConvention parses the convention name used in the config file
func ParseConvention(name string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binary", "":
		return Binary, nil
	case "multiclass":
		return Multiclass, nil
	}
	return Binary, fmt.Errorf("unknown label convention %q", name)
}

func (c Convention) String() string {
	if c == Multiclass {
		return "multiclass"
	}
	return "binary"
}

// LabelTable decodes class indices into human readable labels
type LabelTable struct {
	convention Convention
	labels     []string
}

// NewLabelTable builds the decoding table for the given convention. Under the
// binary convention the fitted labels are ignored.
func NewLabelTable(convention Convention, fitted []string) (*LabelTable, error) {
	if convention == Binary {
		return &LabelTable{convention: Binary, labels: []string{BenignLabel, MaliciousLabel}}, nil
	}

	if len(fitted) < 2 {
		return nil, fmt.Errorf("multiclass convention requires at least two fitted labels, got %d", len(fitted))
	}
	seen := make(map[string]struct{}, len(fitted))
	for _, label := range fitted {
		if label == "" {
			return nil, fmt.Errorf("empty label in fitted label table")
		}
		if _, ok := seen[label]; ok {
			return nil, fmt.Errorf("duplicate label %q in fitted label table", label)
		}
		seen[label] = struct{}{}
	}
	return &LabelTable{convention: Multiclass, labels: append([]string(nil), fitted...)}, nil
}

// Convention returns the active convention
func (t *LabelTable) Convention() Convention {
	return t.convention
}

// Len returns the number of classes
func (t *LabelTable) Len() int {
	return len(t.labels)
}

// Labels returns the labels in class index order
func (t *LabelTable) Labels() []string {
	return append([]string(nil), t.labels...)
}

// Decode maps a class index to its label
func (t *LabelTable) Decode(idx int) (string, error) {
	if idx < 0 || idx >= len(t.labels) {
		return "", fmt.Errorf("class index %d outside label table of %d classes", idx, len(t.labels))
	}
	return t.labels[idx], nil
}
