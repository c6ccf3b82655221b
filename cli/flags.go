package cli

import (
	"strings"

	"github.com/grovetools/pulse/pkg/models"
	"github.com/spf13/pflag"
)

// SectionsValue is a repeatable --section flag. Each value may also be a
// comma-separated list; aliases such as "schedule" are accepted.
type SectionsValue struct {
	Sections []models.Section
}

var _ pflag.Value = (*SectionsValue)(nil)

func (v *SectionsValue) String() string {
	names := make([]string, len(v.Sections))
	for i, s := range v.Sections {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

func (v *SectionsValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sec, err := models.ParseSection(part)
		if err != nil {
			return err
		}
		v.Sections = append(v.Sections, sec)
	}
	return nil
}

func (v *SectionsValue) Type() string { return "section" }

// ItemSection returns the single item section named, for commands that
// accept exactly one.
func (v *SectionsValue) ItemSection() (models.Section, bool) {
	if len(v.Sections) != 1 || !v.Sections[0].HoldsItems() {
		return "", false
	}
	return v.Sections[0], true
}
