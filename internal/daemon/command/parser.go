package command

import (
	"fmt"
	"strings"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/models"
)

// DefaultDelimiter separates segments of a piped command line.
const DefaultDelimiter = "|"

// Command is one structurally valid segment.
type Command struct {
	// Index is the 1-based position of the segment in the line.
	Index    int    `json:"index"`
	Raw      string `json:"raw"`
	Verb     string `json:"verb"`
	Code     string `json:"code,omitempty"`
	Argument string `json:"argument,omitempty"`
}

// ParseError reports a malformed segment. Other segments are unaffected.
type ParseError struct {
	Index   int    `json:"index"`
	Segment string `json:"segment"`
	Reason  string `json:"reason"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("segment %d %q: %s", e.Index, e.Segment, e.Reason)
}

// ErrorCode implements the errors package code lookup.
func (e *ParseError) ErrorCode() errors.ErrorCode { return errors.ErrCodeParse }

// Parsed holds either a Command or the ParseError for one segment.
type Parsed struct {
	Command *Command
	Err     *ParseError
}

// Segment returns the raw text of the segment.
func (p Parsed) Segment() string {
	if p.Err != nil {
		return p.Err.Segment
	}
	return p.Command.Raw
}

// VerbSet is the verb table the parser validates against.
type VerbSet interface {
	Lookup(name string) (*Verb, bool)
}

// Parser splits a line into segments and validates each one structurally.
// Codes are not resolved here.
type Parser struct {
	Verbs     VerbSet
	Delimiter string
}

// Parse returns one entry per segment, in order.
func (p Parser) Parse(line string) []Parsed {
	if strings.TrimSpace(line) == "" {
		return []Parsed{{Err: &ParseError{Index: 1, Segment: "", Reason: "empty command"}}}
	}

	delim := p.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}

	parts := strings.Split(line, delim)
	out := make([]Parsed, 0, len(parts))
	for i, part := range parts {
		out = append(out, p.parseSegment(i+1, strings.TrimSpace(part)))
	}
	return out
}

func (p Parser) parseSegment(index int, raw string) Parsed {
	fail := func(format string, args ...any) Parsed {
		return Parsed{Err: &ParseError{Index: index, Segment: raw, Reason: fmt.Sprintf(format, args...)}}
	}

	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return fail("empty segment")
	}

	verb, ok := p.Verbs.Lookup(tokens[0])
	if !ok {
		return fail("unknown verb '%s'", tokens[0])
	}

	cmd := &Command{Index: index, Raw: raw, Verb: verb.Name}
	rest := tokens[1:]
	if verb.Code != CodeNone {
		for i, tok := range rest {
			if models.LooksLikeCode(tok) {
				cmd.Code = strings.ToUpper(tok[:1]) + tok[1:]
				rest = append(append([]string(nil), rest[:i]...), rest[i+1:]...)
				break
			}
		}
	}
	cmd.Argument = strings.Join(rest, " ")

	if verb.Code == CodeRequired && cmd.Code == "" {
		return fail("verb '%s' requires an item code", verb.Name)
	}
	return Parsed{Command: cmd}
}
