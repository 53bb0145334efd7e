package files

import (
	"bufio"

	pt "github.com/activecm/flowguard/parser/parsetypes"
)

// BroHeader contains the parse information contained within the comment lines
// of Zeek files
type BroHeader struct {
	Names     []string // Names of fields
	Types     []string // Types of fields
	Separator string   // Field separator
	SetSep    string   // Set separator
	Empty     string   // Empty field tag
	Unset     string   // Unset field tag
	ObjType   string   // Object type (comes from #path)
	lines     int      // Lines consumed by the header
}

// ZeekHeaderIndexMap maps the indexes of the fields in the ZeekHeader to the respective
// indexes in the parsetype.BroData structs
type ZeekHeaderIndexMap struct {
	NthLogFieldExistsInParseType []bool
	NthLogFieldParseTypeOffset   []int
}

// LogFile is an open Zeek log whose format and parse type have been
// detected. Entries are read with Next.
type LogFile struct {
	Path           string
	header         *BroHeader
	broDataFactory func() pt.BroData
	fieldMap       ZeekHeaderIndexMap
	json           bool
	scanner        *bufio.Scanner
	closer         func() error
	pending        bool
	done           bool
	line           int
}

// IsJSON returns whether the file is a json file
func (l *LogFile) IsJSON() bool {
	return l.json
}

// GetHeader retrieves the broHeader of a TSV file
func (l *LogFile) GetHeader() *BroHeader {
	return l.header
}

// Line returns the line number of the entry last returned by Next
func (l *LogFile) Line() int {
	return l.line
}
