package models

import "time"

// Summary is the free-form active summary section.
type Summary struct {
	Text       string         `json:"text,omitempty" yaml:"text,omitempty"`
	Highlights []string       `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	Fields     map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Clone deep-copies the summary.
func (s Summary) Clone() Summary {
	out := s
	if s.Highlights != nil {
		out.Highlights = append([]string(nil), s.Highlights...)
	}
	out.Fields = cloneMap(s.Fields)
	return out
}

// CollectorStatus describes the last run of one collector.
type CollectorStatus struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run,omitempty"`
	Items   int       `json:"items"`
	Error   string    `json:"error,omitempty"`
}

// Status is the system-status section.
type Status struct {
	Message    string                     `json:"message,omitempty"`
	Collectors map[string]CollectorStatus `json:"collectors,omitempty"`
}

// Clone copies the status so the collector map can be modified.
func (s Status) Clone() Status {
	out := s
	if s.Collectors != nil {
		out.Collectors = make(map[string]CollectorStatus, len(s.Collectors))
		for k, v := range s.Collectors {
			out.Collectors[k] = v
		}
	}
	return out
}

// Snapshot is one immutable, versioned copy of the full operational state.
// A published snapshot is never modified; writers build a new one.
type Snapshot struct {
	Version     uint64    `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
	Calendar    []Item    `json:"calendar"`
	Priorities  []Item    `json:"priorities"`
	Commitments []Item    `json:"commitments"`
	Summary     Summary   `json:"summary"`
	Status      Status    `json:"status"`
}

// Empty returns the version-zero snapshot.
func Empty() *Snapshot {
	return &Snapshot{
		Calendar:    []Item{},
		Priorities:  []Item{},
		Commitments: []Item{},
	}
}

// Items returns the item list for an item section, or nil.
func (s *Snapshot) Items(section Section) []Item {
	switch section {
	case SectionCalendar:
		return s.Calendar
	case SectionPriorities:
		return s.Priorities
	case SectionCommitments:
		return s.Commitments
	}
	return nil
}

// Derive returns a shallow copy with the version bumped. Section slices are
// shared with the receiver; callers replace whole slices, never elements.
func (s *Snapshot) Derive(now time.Time) *Snapshot {
	next := *s
	next.Version = s.Version + 1
	next.UpdatedAt = now
	return &next
}

// WithItems replaces one item section in place. It must only be called on a
// snapshot that has not been published yet.
func (s *Snapshot) WithItems(section Section, items []Item) *Snapshot {
	switch section {
	case SectionCalendar:
		s.Calendar = items
	case SectionPriorities:
		s.Priorities = items
	case SectionCommitments:
		s.Commitments = items
	}
	return s
}

// FindByKey locates an item by category and natural key.
func (s *Snapshot) FindByKey(c Category, key string) (Item, int, bool) {
	for i, it := range s.Items(c.Section()) {
		if it.Key == key {
			return it, i, true
		}
	}
	return Item{}, -1, false
}

// FindByCode locates an item by its assigned code.
func (s *Snapshot) FindByCode(code Code) (Item, bool) {
	for _, it := range s.Items(code.Category.Section()) {
		if it.Code == code {
			return it, true
		}
	}
	return Item{}, false
}

// Count returns the total number of coded items.
func (s *Snapshot) Count() int {
	return len(s.Calendar) + len(s.Priorities) + len(s.Commitments)
}
