// Package command parses piped command lines, resolves item codes and runs
// the registered verb handlers segment by segment.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/grovetools/pulse/pkg/models"
)

// Result is what a handler reports back for one segment.
type Result struct {
	Message string
	// Version is the snapshot version produced by the handler's write, or
	// zero when the handler did not write.
	Version uint64
	// Item is the item after the handler ran. Nil keeps the resolved item.
	Item *models.Item
}

// Handler executes one verb.
type Handler interface {
	Handle(ctx context.Context, cmd Resolved) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd Resolved) (Result, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, cmd Resolved) (Result, error) {
	return f(ctx, cmd)
}

// CodeUsage says how a verb treats a code-shaped token.
type CodeUsage int

const (
	// CodeOptional extracts the first code-shaped token when present.
	CodeOptional CodeUsage = iota
	// CodeRequired makes a missing code a parse error.
	CodeRequired
	// CodeNone keeps every token in the argument.
	CodeNone
)

func (u CodeUsage) String() string {
	switch u {
	case CodeRequired:
		return "required"
	case CodeNone:
		return "none"
	default:
		return "optional"
	}
}

// Verb is one registered command.
type Verb struct {
	Name        string    `json:"name"`
	Aliases     []string  `json:"aliases,omitempty"`
	Code        CodeUsage `json:"-"`
	Description string    `json:"description,omitempty"`
	Handler     Handler   `json:"-"`
}

// VerbOption configures a Verb at registration.
type VerbOption func(*Verb)

// RequireCode makes the verb reject segments without an item code.
func RequireCode() VerbOption {
	return func(v *Verb) { v.Code = CodeRequired }
}

// NoCode makes the verb treat code-shaped tokens as plain argument text.
func NoCode() VerbOption {
	return func(v *Verb) { v.Code = CodeNone }
}

// Aliases adds alternative names for the verb.
func Aliases(names ...string) VerbOption {
	return func(v *Verb) { v.Aliases = append(v.Aliases, names...) }
}

// Describe sets the help text shown by `pulse do --help` and /api/verbs.
func Describe(text string) VerbOption {
	return func(v *Verb) { v.Description = text }
}

// Registry is the table of verbs known to the resolver. Lookups are
// case-insensitive.
type Registry struct {
	mu    sync.RWMutex
	names map[string]*Verb
	verbs []*Verb
}

// NewRegistry returns an empty verb table.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]*Verb)}
}

// Register adds a verb. Names and aliases must be unique.
func (r *Registry) Register(name string, h Handler, opts ...VerbOption) error {
	name = normalizeVerb(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return fmt.Errorf("invalid verb name %q", name)
	}
	if h == nil {
		return fmt.Errorf("verb %q has no handler", name)
	}
	v := &Verb{Name: name, Handler: h}
	for _, opt := range opts {
		opt(v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{name}, v.Aliases...)
	for i, n := range names {
		n = normalizeVerb(n)
		names[i] = n
		if _, exists := r.names[n]; exists {
			return fmt.Errorf("verb %q already registered", n)
		}
	}
	for _, n := range names {
		r.names[n] = v
	}
	r.verbs = append(r.verbs, v)
	return nil
}

// Lookup finds a verb by name or alias.
func (r *Registry) Lookup(name string) (*Verb, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.names[normalizeVerb(name)]
	return v, ok
}

// Verbs lists registered verbs sorted by name.
func (r *Registry) Verbs() []Verb {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Verb, 0, len(r.verbs))
	for _, v := range r.verbs {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalizeVerb(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
