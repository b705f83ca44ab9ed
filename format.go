package andersen

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrSyntax = errors.New("malformed constraint")

// ParseConstraint parses a single constraint in the notation produced by
// the String methods of the constraint kinds:
//
//	{o} ⊆ p    base
//	p ⊆ q      simple
//	*p ⊆ q     load
//	q ⊆ *p     store
//
// "<=" may be used instead of "⊆".
func ParseConstraint(line string) (Constraint, error) {
	lhs, rhs, found := strings.Cut(line, "⊆")
	if !found {
		lhs, rhs, found = strings.Cut(line, "<=")
	}
	if !found {
		return nil, fmt.Errorf("%w: missing ⊆ in %q", ErrSyntax, line)
	}

	lhs, rhs = strings.TrimSpace(lhs), strings.TrimSpace(rhs)
	lderef, rderef := strings.HasPrefix(lhs, "*"), strings.HasPrefix(rhs, "*")

	var c Constraint
	switch {
	case len(lhs) >= 2 && lhs[0] == '{' && lhs[len(lhs)-1] == '}':
		if rderef {
			return nil, fmt.Errorf("%w: base constraint into a dereference in %q", ErrSyntax, line)
		}
		c = Base(strings.TrimSpace(lhs[1:len(lhs)-1]), rhs)
	case lderef && rderef:
		return nil, fmt.Errorf("%w: two dereferences in %q", ErrSyntax, line)
	case lderef:
		c = Load(strings.TrimSpace(lhs[1:]), rhs)
	case rderef:
		c = Store(lhs, strings.TrimSpace(rhs[1:]))
	default:
		c = Simple(lhs, rhs)
	}

	if c.SubVar() == "" || c.SuperVar() == "" {
		return nil, fmt.Errorf("%w: empty variable name in %q", ErrSyntax, line)
	}

	return c, nil
}

// ParseConstraints reads one constraint per line. Empty lines and lines
// starting with '#' are ignored.
func ParseConstraints(r io.Reader) (*ConstraintSystem, error) {
	cs := NewConstraintSystem()
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		c, err := ParseConstraint(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		cs = cs.AddConstraint(c)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cs, nil
}

// WriteConstraints writes the constraints of cs in the format accepted by
// ParseConstraints.
func WriteConstraints(w io.Writer, cs *ConstraintSystem) error {
	bw := bufio.NewWriter(w)
	for _, c := range cs.Constraints() {
		if _, err := fmt.Fprintln(bw, c); err != nil {
			return err
		}
	}
	return bw.Flush()
}
