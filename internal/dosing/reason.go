package dosing

import (
	"fmt"
	"strings"
)

// ReasonBuilder accumulates the clauses of the determination's human-readable
// reason string in the exact order the cascade visits them (SPEC_FULL.md
// §4.9a), joined with "; ".
type ReasonBuilder struct {
	clauses []string
}

func (r *ReasonBuilder) Add(clause string) {
	r.clauses = append(r.clauses, clause)
}

func (r *ReasonBuilder) Addf(format string, args ...any) {
	r.Add(fmt.Sprintf(format, args...))
}

func (r *ReasonBuilder) String() string {
	return strings.Join(r.clauses, "; ")
}
