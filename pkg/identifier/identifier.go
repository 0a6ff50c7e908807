// Package identifier parses experiment identifiers into their lineage parts.
//
// Grammar (version 1):
//
//	identifier := base [ "-" N ] [ "_" treatment ]
//
// base is itself "_"-delimited (TYPE_INITIALS_INDEX). A trailing "_" segment is only read as a
// treatment when the identifier has more than three "_" segments and that segment is not purely
// numeric. A treatment may carry its own "-N" suffix; it stays part of the treatment name.
package identifier

import (
	"fmt"
	"strconv"
	"strings"
)

// GrammarVersion 1 identifiers compare case-insensitively over ASCII only.
const GrammarVersion = 1

type Kind int

const (
	KindEmpty Kind = iota
	KindRoot
	KindSequential
	KindTreatment
	KindSequentialTreatment
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindSequential:
		return "sequential"
	case KindTreatment:
		return "treatment"
	case KindSequentialTreatment:
		return "sequential_treatment"
	default:
		return "empty"
	}
}

// Parsed is the tagged result of Parse.
type Parsed struct {
	Kind          Kind
	Base          string
	Derivation    int
	HasDerivation bool
	Treatment     string
	// Ambiguous marks parses whose treatment token could equally be read as part of the base id.
	Ambiguous bool
}

// Parse splits an experiment identifier into base id, sequential derivation number and
// treatment variant. It is pure.
func Parse(id string) Parsed {
	id = strings.TrimSpace(id)
	if id == "" {
		return Parsed{}
	}

	p := Parsed{}
	remaining := id

	parts := strings.Split(id, "_")
	if len(parts) > 3 {
		last := parts[len(parts)-1]
		if last != "" && !isDigits(last) {
			p.Treatment = last
			p.Ambiguous = strings.ContainsAny(last, "0123456789")
			remaining = strings.Join(parts[:len(parts)-1], "_")
		}
	}

	if i := strings.LastIndex(remaining, "-"); i >= 0 && isDigits(remaining[i+1:]) {
		n, err := strconv.Atoi(remaining[i+1:])
		if err == nil {
			p.Derivation = n
			p.HasDerivation = true
			remaining = remaining[:i]
		}
	}
	p.Base = remaining

	switch {
	case p.HasDerivation && p.Treatment != "":
		p.Kind = KindSequentialTreatment
	case p.HasDerivation:
		p.Kind = KindSequential
	case p.Treatment != "":
		p.Kind = KindTreatment
	default:
		p.Kind = KindRoot
	}
	return p
}

// IsDerivation reports whether the identifier extends a base id.
func (p Parsed) IsDerivation() bool {
	return p.Kind == KindSequential || p.Kind == KindTreatment || p.Kind == KindSequentialTreatment
}

// IsTreatment reports whether the identifier names a treatment variant.
func (p Parsed) IsTreatment() bool {
	return p.Kind == KindTreatment || p.Kind == KindSequentialTreatment
}

// Tuple returns the (base, derivation number, treatment) triple with nil for absent parts.
func (p Parsed) Tuple() (*string, *int, *string) {
	if p.Kind == KindEmpty {
		return nil, nil, nil
	}
	base := p.Base
	var derivation *int
	if p.HasDerivation {
		n := p.Derivation
		derivation = &n
	}
	var treatment *string
	if p.Treatment != "" {
		t := p.Treatment
		treatment = &t
	}
	return &base, derivation, treatment
}

// SequentialParent is the identifier a sequential treatment hangs off, e.g. "BASE-2" for "BASE-2_Desorption".
func (p Parsed) SequentialParent() string {
	return fmt.Sprintf("%s-%d", p.Base, p.Derivation)
}

// Normalize folds ASCII letters to lower case and removes '-', '_' and ' ' so spellings of one
// identifier compare equal. Non-ASCII runes pass through unchanged, matching the SQL side.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-' || c == '_' || c == ' ':
			continue
		case 'A' <= c && c <= 'Z':
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
