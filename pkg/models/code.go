package models

import (
	"strconv"
	"strings"

	"github.com/grovetools/pulse/errors"
)

// Category identifies which kind of item a code addresses. The value is the
// single letter used when rendering codes.
type Category string

const (
	CategorySchedule   Category = "C"
	CategoryPriority   Category = "P"
	CategoryCommitment Category = "M"
)

// Categories lists every registered category in display order.
var Categories = []Category{CategorySchedule, CategoryPriority, CategoryCommitment}

// Valid reports whether c is a registered category.
func (c Category) Valid() bool {
	switch c {
	case CategorySchedule, CategoryPriority, CategoryCommitment:
		return true
	}
	return false
}

// Name returns the long human name of the category.
func (c Category) Name() string {
	switch c {
	case CategorySchedule:
		return "schedule"
	case CategoryPriority:
		return "priority"
	case CategoryCommitment:
		return "commitment"
	}
	return string(c)
}

// Section returns the snapshot section holding items of this category.
func (c Category) Section() Section {
	switch c {
	case CategorySchedule:
		return SectionCalendar
	case CategoryPriority:
		return SectionPriorities
	case CategoryCommitment:
		return SectionCommitments
	}
	return ""
}

// ParseCategory accepts either the letter or the long name.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		c := Category(strings.ToUpper(s))
		return c, c.Valid()
	}
	for _, c := range Categories {
		if strings.EqualFold(c.Name(), s) {
			return c, true
		}
	}
	return "", false
}

// Code is a short stable identifier such as P7.
type Code struct {
	Category Category
	Seq      int
}

// NewCode builds a code for a category and sequence number.
func NewCode(c Category, seq int) Code {
	return Code{Category: c, Seq: seq}
}

// IsZero reports whether the code is unset.
func (c Code) IsZero() bool {
	return c.Category == "" && c.Seq == 0
}

func (c Code) String() string {
	if c.IsZero() {
		return ""
	}
	return string(c.Category) + strconv.Itoa(c.Seq)
}

// MarshalText renders the code as <letter><n>.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses <letter><n>; an empty value leaves the code zero.
func (c *Code) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = Code{}
		return nil
	}
	parsed, err := ParseCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// LooksLikeCode reports whether s has the shape <letter><digits>.
func LooksLikeCode(s string) bool {
	if len(s) < 2 {
		return false
	}
	ch := s[0]
	if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseCode parses the shape of a code. The letter is upper-cased but not
// checked against the registered categories; resolution decides whether the
// code exists.
func ParseCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if !LooksLikeCode(s) {
		return Code{}, errors.InvalidCode(s)
	}
	seq, err := strconv.Atoi(s[1:])
	if err != nil || seq < 1 {
		return Code{}, errors.InvalidCode(s)
	}
	return Code{Category: Category(strings.ToUpper(s[:1])), Seq: seq}, nil
}
