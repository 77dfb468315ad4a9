package szz

import "fmt"

// Variant names an SZZ algorithm flavor.
type Variant string

const (
	// VariantB is the base algorithm: plain blame, no filters.
	VariantB Variant = "b"
	// VariantAG adds the annotation-graph ignore loop with the
	// large-commit filter.
	VariantAG Variant = "ag"
	// VariantMA adds move detection, merge and meta-change filters,
	// looping per impacted file.
	VariantMA Variant = "ma"
	// VariantR reduces the MA candidates to the most recent commit.
	VariantR Variant = "r"
	// VariantL reduces the MA candidates to the commit with the most
	// modified lines.
	VariantL Variant = "l"
	// VariantRA extends MA with refactoring-aware pruning and reblame.
	VariantRA Variant = "ra"
)

// ParseVariant validates a variant name from configuration.
func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case VariantB, VariantAG, VariantMA, VariantR, VariantL, VariantRA:
		return Variant(name), nil
	}
	return "", fmt.Errorf("unknown szz variant: %q", name)
}

// DateField selects which commit timestamp the issue-date filter uses.
type DateField int

const (
	DateCommitted DateField = iota
	DateAuthored
)

// Selector picks the final commits out of the candidate set.
type Selector int

const (
	// SelectAll keeps every candidate.
	SelectAll Selector = iota
	// SelectLatest keeps the candidate with the newest committed date.
	SelectLatest
	// SelectLargest keeps the candidate with the most modified lines.
	SelectLargest
)

// Profile captures which filters and blame flags a variant enables.
type Profile struct {
	IgnoreWhitespace     bool
	SkipComments         bool
	DetectMoveWithinFile bool
	UseCrossFileMove     bool
	UseIgnoreLoop        bool
	PerFileLoop          bool
	RefactoringAware     bool
	DateField            DateField
	Selector             Selector
}

// maProfile is shared by MA and its refinements R, L and RA.
var maProfile = Profile{
	IgnoreWhitespace:     true,
	SkipComments:         true,
	DetectMoveWithinFile: true,
	UseCrossFileMove:     true,
	UseIgnoreLoop:        true,
	PerFileLoop:          true,
	DateField:            DateCommitted,
	Selector:             SelectAll,
}

// ProfileFor returns the filter profile of a variant.
func ProfileFor(v Variant) Profile {
	switch v {
	case VariantAG:
		return Profile{
			IgnoreWhitespace: true,
			SkipComments:     true,
			UseIgnoreLoop:    true,
			DateField:        DateAuthored,
			Selector:         SelectAll,
		}
	case VariantMA:
		return maProfile
	case VariantR:
		p := maProfile
		p.Selector = SelectLatest
		return p
	case VariantL:
		p := maProfile
		p.Selector = SelectLargest
		return p
	case VariantRA:
		p := maProfile
		p.RefactoringAware = true
		return p
	default: // VariantB
		return Profile{DateField: DateCommitted, Selector: SelectAll}
	}
}
