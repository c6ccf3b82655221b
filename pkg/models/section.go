package models

import (
	"strings"

	"github.com/grovetools/pulse/errors"
)

// Section names one subdivision of a Snapshot.
type Section string

const (
	SectionCalendar    Section = "calendar"
	SectionPriorities  Section = "priorities"
	SectionCommitments Section = "commitments"
	SectionSummary     Section = "summary"
	SectionStatus      Section = "status"
)

// Sections lists all snapshot sections.
var Sections = []Section{SectionCalendar, SectionPriorities, SectionCommitments, SectionSummary, SectionStatus}

var sectionAliases = map[string]Section{
	"calendar":       SectionCalendar,
	"schedule":       SectionCalendar,
	"priorities":     SectionPriorities,
	"priority":       SectionPriorities,
	"commitments":    SectionCommitments,
	"commitment":     SectionCommitments,
	"summary":        SectionSummary,
	"active_summary": SectionSummary,
	"active-summary": SectionSummary,
	"status":         SectionStatus,
	"system_status":  SectionStatus,
	"system-status":  SectionStatus,
}

// ParseSection resolves a section name or one of its aliases.
func ParseSection(s string) (Section, error) {
	if sec, ok := sectionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sec, nil
	}
	return "", errors.Newf(errors.ErrCodeInvalidSection, "unknown section '%s'", s).
		WithDetail("section", s)
}

// Category returns the item category stored in this section. Summary and
// status hold no items and report false.
func (s Section) Category() (Category, bool) {
	switch s {
	case SectionCalendar:
		return CategorySchedule, true
	case SectionPriorities:
		return CategoryPriority, true
	case SectionCommitments:
		return CategoryCommitment, true
	}
	return "", false
}

// HoldsItems reports whether the section is a list of coded items.
func (s Section) HoldsItems() bool {
	_, ok := s.Category()
	return ok
}
