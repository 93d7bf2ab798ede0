// Package filter parses and evaluates where-clauses.
//
// Only equality is supported: "field=value". The clause is parsed once into
// an Expr and then evaluated against attribute values.
package filter

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
)

// Op is a comparison operator.
type Op string

const OpEq Op = "="

// Expr is a parsed predicate: Field Op Literal.
type Expr struct {
	Field   string
	Op      Op
	Literal any
}

var clauseRe = regexp.MustCompile(`^\s*(\w+)\s*=\s*(.+?)\s*$`)

// Parse parses "field=value".
func Parse(clause string) (Expr, error) {
	m := clauseRe.FindStringSubmatch(clause)
	if m == nil {
		return Expr{}, fmt.Errorf("%w: invalid where clause %q (want field=value)", api.ErrInvalidArgument, clause)
	}
	return Expr{Field: m[1], Op: OpEq, Literal: ParseLiteral(m[2])}, nil
}

func (e Expr) String() string {
	return fmt.Sprintf("%s%s%v", e.Field, e.Op, e.Literal)
}

// Match reports whether v satisfies the predicate.
func (e Expr) Match(v any) bool {
	return Equal(v, e.Literal)
}

// ParseLiteral turns a command-line value into a typed JSON value:
// true/false (any case), null, integers, decimals, quoted strings, and
// anything else as a plain string.
func ParseLiteral(s string) any {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXnN") {
		return f
	}
	return s
}

// Equal compares two JSON values. Numbers compare by value regardless of
// their Go representation.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := jsonfile.Float(a); ok {
		fb, ok := jsonfile.Float(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}
