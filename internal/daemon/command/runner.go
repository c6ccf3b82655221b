package command

import (
	"context"
	stderrors "errors"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// Kind classifies the outcome of one segment.
type Kind string

const (
	KindOK             Kind = "ok"
	KindParseError     Kind = "parse_error"
	KindUnresolvedCode Kind = "unresolved_code"
	KindItemNotFound   Kind = "item_not_found"
	KindHandlerError   Kind = "handler_error"
	KindSkipped        Kind = "skipped"
)

// Outcome is the per-segment report returned to the caller.
type Outcome struct {
	Index     int              `json:"index"`
	Segment   string           `json:"segment"`
	Kind      Kind             `json:"kind"`
	Verb      string           `json:"verb,omitempty"`
	Code      string           `json:"code,omitempty"`
	Item      *models.Item     `json:"item,omitempty"`
	Message   string           `json:"message,omitempty"`
	Version   uint64           `json:"version,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorCode errors.ErrorCode `json:"error_code,omitempty"`
}

// OK reports whether the segment ran successfully.
func (o Outcome) OK() bool { return o.Kind == KindOK }

// Failed reports whether any segment did not succeed.
func Failed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}

// Report is the body returned for one command line.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
	Failed   bool      `json:"failed"`
}

// NewReport wraps outcomes for transport.
func NewReport(outcomes []Outcome) Report {
	if outcomes == nil {
		outcomes = []Outcome{}
	}
	return Report{Outcomes: outcomes, Failed: Failed(outcomes)}
}

// Policy decides what happens to the rest of a pipe after a failure.
type Policy string

const (
	// PolicyContinue runs every valid segment and reports each outcome.
	PolicyContinue Policy = "continue"
	// PolicyFailFast runs nothing if any segment fails to parse, and stops
	// at the first execution failure. Earlier segments are not undone.
	PolicyFailFast Policy = "fail_fast"
)

// Runner parses a whole line, then resolves and executes its segments left
// to right.
type Runner struct {
	Verbs    *Registry
	Parser   Parser
	Resolver Resolver
	Policy   Policy
	Logger   *logrus.Entry
}

// NewRunner wires a runner with the given verb table and collaborators.
func NewRunner(verbs *Registry, codes CodeResolver, items SnapshotSource, delimiter string, policy Policy, logger *logrus.Entry) *Runner {
	if policy == "" {
		policy = PolicyContinue
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		Verbs:    verbs,
		Parser:   Parser{Verbs: verbs, Delimiter: delimiter},
		Resolver: Resolver{Codes: codes, Items: items},
		Policy:   policy,
		Logger:   logger,
	}
}

// Run executes line and returns one outcome per segment.
func (r *Runner) Run(ctx context.Context, line string) []Outcome {
	parsed := r.Parser.Parse(line)
	outcomes := make([]Outcome, len(parsed))

	parseFailed := false
	for i, p := range parsed {
		if p.Err != nil {
			parseFailed = true
			outcomes[i] = Outcome{
				Index:     p.Err.Index,
				Segment:   p.Err.Segment,
				Kind:      KindParseError,
				Error:     p.Err.Reason,
				ErrorCode: errors.ErrCodeParse,
			}
		}
	}

	stopped := parseFailed && r.Policy == PolicyFailFast
	for i, p := range parsed {
		if p.Err != nil {
			continue
		}
		if stopped || ctx.Err() != nil {
			outcomes[i] = skipped(p.Command)
			continue
		}
		outcomes[i] = r.execute(ctx, *p.Command)
		if !outcomes[i].OK() && r.Policy == PolicyFailFast {
			stopped = true
		}
	}

	r.Logger.WithFields(logrus.Fields{
		"segments": len(outcomes),
		"failed":   Failed(outcomes),
	}).Debug("Ran command line")
	return outcomes
}

func skipped(cmd *Command) Outcome {
	return Outcome{
		Index:   cmd.Index,
		Segment: cmd.Raw,
		Kind:    KindSkipped,
		Verb:    cmd.Verb,
		Code:    cmd.Code,
	}
}

func (r *Runner) execute(ctx context.Context, cmd Command) Outcome {
	out := Outcome{
		Index:   cmd.Index,
		Segment: cmd.Raw,
		Verb:    cmd.Verb,
		Code:    cmd.Code,
	}

	resolved, err := r.Resolver.Resolve(cmd)
	if err != nil {
		return fail(out, err)
	}
	out.Item = resolved.Item

	verb, ok := r.Verbs.Lookup(cmd.Verb)
	if !ok {
		// Verb removed between parse and execution.
		out.Kind = KindParseError
		out.Error = "unknown verb '" + cmd.Verb + "'"
		out.ErrorCode = errors.ErrCodeParse
		return out
	}

	res, err := verb.Handler.Handle(ctx, resolved)
	if err != nil {
		r.Logger.WithError(err).WithFields(logrus.Fields{
			"verb": cmd.Verb,
			"code": cmd.Code,
		}).Debug("Command handler failed")
		return fail(out, err)
	}

	out.Kind = KindOK
	out.Message = res.Message
	out.Version = res.Version
	if res.Item != nil {
		out.Item = res.Item
	}
	return out
}

func fail(out Outcome, err error) Outcome {
	var (
		unresolved *UnresolvedCodeError
		notFound   *ItemNotFoundError
	)
	switch {
	case stderrors.As(err, &unresolved):
		out.Kind = KindUnresolvedCode
	case stderrors.As(err, &notFound):
		out.Kind = KindItemNotFound
	case errors.Is(err, errors.ErrCodeCodeNotFound):
		out.Kind = KindUnresolvedCode
	case errors.Is(err, errors.ErrCodeItemNotFound):
		out.Kind = KindItemNotFound
	default:
		out.Kind = KindHandlerError
	}
	out.Error = err.Error()
	out.ErrorCode = errors.GetCode(err)
	if out.ErrorCode == "" {
		out.ErrorCode = errors.ErrCodeHandlerFailed
	}
	return out
}
