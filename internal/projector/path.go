package projector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/ohler55/ojg/jp"
)

// Path is a parsed dataset path such as "[*].author.name" or "[3].content".
//
// The leading selector picks records ("[*]" every record, "[N]" one record;
// a path with no selector applies to every record). The remainder descends
// into each selected record and is compiled to a JSONPath expression.
type Path struct {
	raw   string
	all   bool
	index int
	rel   relPath
}

// relPath is a record-relative descent.
type relPath struct {
	raw      string
	expr     jp.Expr
	empty    bool
	wildcard bool
}

// ParsePath parses a dataset path. A leading "$" is accepted and ignored.
func ParsePath(s string) (*Path, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", api.ErrInvalidArgument)
	}

	p := &Path{raw: raw, all: true}
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated bracket in %q", api.ErrInvalidArgument, raw)
		}
		sel := strings.TrimSpace(s[1:end])
		if sel != "*" {
			n, err := strconv.Atoi(sel)
			if err != nil {
				return nil, fmt.Errorf("%w: bad selector [%s] in %q", api.ErrInvalidArgument, sel, raw)
			}
			p.all = false
			p.index = n
		}
		s = s[end+1:]
	}

	rel, err := parseRelative(s)
	if err != nil {
		return nil, fmt.Errorf("%w (in %q)", err, raw)
	}
	p.rel = rel
	return p, nil
}

func (p *Path) String() string { return p.raw }

// Select returns the record indices the path's selector picks out of a
// dataset of length n.
func (p *Path) Select(n int) ([]int, error) {
	if !p.all {
		if p.index < 0 || p.index >= n {
			return nil, fmt.Errorf("%w: [%d] with %d records", api.ErrIndexOutOfRange, p.index, n)
		}
		return []int{p.index}, nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out, nil
}

// Selects reports whether index i is picked by the selector.
func (p *Path) Selects(i int) bool {
	return p.all || p.index == i
}

// parseRelative compiles ".a.b[0].c" / "a.b[*]" into a JSONPath expression
// rooted at the record.
func parseRelative(s string) (relPath, error) {
	rel := relPath{raw: s}
	x := jp.R()
	rest := s
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return rel, fmt.Errorf("%w: unterminated bracket", api.ErrInvalidArgument)
			}
			sel := strings.TrimSpace(rest[1:end])
			switch {
			case sel == "*":
				x = x.W()
				rel.wildcard = true
			case len(sel) >= 2 && (sel[0] == '"' || sel[0] == '\'') && sel[len(sel)-1] == sel[0]:
				x = x.C(sel[1 : len(sel)-1])
			default:
				n, err := strconv.Atoi(sel)
				if err != nil {
					return rel, fmt.Errorf("%w: bad selector [%s]", api.ErrInvalidArgument, sel)
				}
				x = x.N(n)
			}
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			key := rest[:end]
			x = x.C(key)
			rest = rest[end:]
		}
	}
	rel.expr = x
	rel.empty = len(x) == 1
	return rel, nil
}

// eval resolves the descent against one record. ok is false when a key on
// the way is absent. Wildcard paths always succeed and yield the list of
// matches.
func (r relPath) eval(record any) (value any, ok bool) {
	if r.empty {
		return record, true
	}
	matches := r.expr.Get(record)
	if r.wildcard {
		if matches == nil {
			matches = []any{}
		}
		return matches, true
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}
