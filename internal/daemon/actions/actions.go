// Package actions is the verb table the daemon registers with the command
// runner. Every mutation goes through the store's write path.
package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/store"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// Item field names written by the handlers.
const (
	FieldStatus       = "status"
	FieldSnoozedUntil = "snoozed_until"
	FieldNotes        = "notes"
)

// StatusDone is the status written by done/approve.
const StatusDone = "done"

// Writer is the subset of the store the handlers use.
type Writer interface {
	Current() *models.Snapshot
	EditItem(ctx context.Context, code models.Code, mutate store.Mutator) (models.Item, uint64, error)
	SetSummary(ctx context.Context, summary models.Summary) (uint64, error)
}

// Refresher asks collectors to rescan their sources.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type handlers struct {
	store     Writer
	refresher Refresher
	now       func() time.Time
	logger    *logrus.Entry
}

// Option configures the handlers.
type Option func(*handlers)

// WithClock overrides the time source used by snooze.
func WithClock(now func() time.Time) Option {
	return func(h *handlers) { h.now = now }
}

// WithLogger sets the handler logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(h *handlers) { h.logger = logger }
}

// Register adds the built-in verbs to verbs. refresher may be nil, in which
// case refresh reports that no collectors are running.
func Register(verbs *command.Registry, w Writer, refresher Refresher, opts ...Option) error {
	h := &handlers{
		store:     w,
		refresher: refresher,
		now:       time.Now,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(h)
	}

	table := []struct {
		name string
		fn   command.HandlerFunc
		opts []command.VerbOption
	}{
		{"done", h.done, []command.VerbOption{command.RequireCode(), command.Aliases("approve", "complete"), command.Describe("mark an item done")}},
		{"snooze", h.snooze, []command.VerbOption{command.RequireCode(), command.Describe("hide an item for a duration, e.g. snooze P3 2h")}},
		{"note", h.note, []command.VerbOption{command.RequireCode(), command.Describe("append a note to an item")}},
		{"status", h.status, []command.VerbOption{command.RequireCode(), command.Describe("set an item's status text")}},
		{"brief", h.brief, []command.VerbOption{command.RequireCode(), command.Aliases("show"), command.Describe("show one item")}},
		{"refresh", h.refresh, []command.VerbOption{command.NoCode(), command.Describe("ask collectors to rescan")}},
		{"summary", h.summary, []command.VerbOption{command.NoCode(), command.Describe("replace the active summary text")}},
	}
	for _, v := range table {
		if err := verbs.Register(v.name, v.fn, v.opts...); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlers) update(ctx context.Context, cmd command.Resolved, mutate store.Mutator) (command.Result, error) {
	item, version, err := h.store.EditItem(ctx, cmd.Target, mutate)
	if err != nil {
		return command.Result{}, err
	}
	return command.Result{Version: version, Item: &item}, nil
}

func (h *handlers) done(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	res, err := h.update(ctx, cmd, func(item *models.Item) error {
		item.Set(FieldStatus, StatusDone)
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("%s marked done", cmd.Target)
	return res, nil
}

func (h *handlers) snooze(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	d, err := ParseDuration(cmd.Argument)
	if err != nil {
		return command.Result{}, err
	}
	until := h.now().UTC().Add(d).Truncate(time.Second)
	res, err := h.update(ctx, cmd, func(item *models.Item) error {
		item.Set(FieldSnoozedUntil, until.Format(time.RFC3339))
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("%s snoozed until %s", cmd.Target, until.Format(time.RFC3339))
	return res, nil
}

func (h *handlers) note(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	text := strings.TrimSpace(cmd.Argument)
	if text == "" {
		return command.Result{}, errors.New(errors.ErrCodeInvalidInput, "note text is required")
	}
	res, err := h.update(ctx, cmd, func(item *models.Item) error {
		item.Set(FieldNotes, append(notes(item.Fields[FieldNotes]), text))
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("note added to %s", cmd.Target)
	return res, nil
}

func (h *handlers) status(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	text := strings.TrimSpace(cmd.Argument)
	if text == "" {
		return command.Result{}, errors.New(errors.ErrCodeInvalidInput, "status text is required")
	}
	res, err := h.update(ctx, cmd, func(item *models.Item) error {
		item.Set(FieldStatus, text)
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("%s status set to %q", cmd.Target, text)
	return res, nil
}

func (h *handlers) brief(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	return command.Result{Message: Describe(*cmd.Item), Item: cmd.Item}, nil
}

func (h *handlers) refresh(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	if h.refresher == nil {
		return command.Result{Message: "no collectors running"}, nil
	}
	if err := h.refresher.Refresh(ctx); err != nil {
		return command.Result{}, err
	}
	return command.Result{Message: "refresh requested"}, nil
}

func (h *handlers) summary(ctx context.Context, cmd command.Resolved) (command.Result, error) {
	current := h.store.Current().Summary.Clone()
	current.Text = strings.TrimSpace(cmd.Argument)
	current.UpdatedAt = time.Time{}
	version, err := h.store.SetSummary(ctx, current)
	if err != nil {
		return command.Result{}, err
	}
	return command.Result{Message: "summary updated", Version: version}, nil
}

// Describe renders a one-line view of an item.
func Describe(item models.Item) string {
	var b strings.Builder
	b.WriteString(item.Code.String())
	b.WriteString(" ")
	b.WriteString(item.Title())

	switch item.Category {
	case models.CategorySchedule:
		var f models.CalendarFields
		if models.DecodeFields(item.Fields, &f) == nil && f.Start != "" {
			b.WriteString(" @ " + f.Start)
		}
	case models.CategoryCommitment:
		var f models.CommitmentFields
		if models.DecodeFields(item.Fields, &f) == nil {
			if f.Owner != "" {
				b.WriteString(" (" + f.Owner + ")")
			}
			if f.Due != "" {
				b.WriteString(" due " + f.Due)
			}
		}
	}
	if s := item.Field(FieldStatus); s != "" {
		b.WriteString(" [" + s + "]")
	}
	if s := item.Field(FieldSnoozedUntil); s != "" {
		b.WriteString(" snoozed until " + s)
	}
	if n := len(notes(item.Fields[FieldNotes])); n > 0 {
		b.WriteString(fmt.Sprintf(" (%d notes)", n))
	}
	return b.String()
}

func notes(v any) []any {
	switch t := v.(type) {
	case []any:
		return append([]any(nil), t...)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if t != "" {
			return []any{t}
		}
	}
	return nil
}

// ParseDuration accepts Go durations plus a whole-day suffix ("2d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New(errors.ErrCodeInvalidInput, "duration is required")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidInput, "invalid duration '%s'", s)
	}
	return d, nil
}
