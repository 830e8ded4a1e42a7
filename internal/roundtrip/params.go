package roundtrip

// SearchParams is the provider-agnostic subset of a flight search request the
// guards need: routing plus the round-trip intent.
type SearchParams struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	ReturnDate  string `json:"return_date,omitempty"`
	IsRoundTrip *bool  `json:"is_round_trip,omitempty"`
}

func (p SearchParams) HasReturnDate() bool {
	return p.ReturnDate != ""
}

// IsOneWay resolves the search direction. An explicit IsRoundTrip flag wins;
// otherwise one-way is inferred from the absence of a return date.
func IsOneWay(p SearchParams) bool {
	if p.IsRoundTrip != nil {
		return !*p.IsRoundTrip
	}
	return !p.HasReturnDate()
}

type IssueCode string

const (
	// IssueMissingReturnDate: marked round-trip but no return date supplied.
	IssueMissingReturnDate IssueCode = "MISSING_RETURN_DATE"
	// IssueConflictingOneWay: return date supplied but explicitly marked
	// one-way. Kept distinct so callers can treat it as a warning.
	IssueConflictingOneWay IssueCode = "CONFLICTING_ONE_WAY"
)

type ValidationIssue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// ValidateSearchParams flags contradictory round-trip intent. Callers decide
// whether to abort the search; nothing here raises.
func ValidateSearchParams(p SearchParams) ValidationResult {
	var issues []ValidationIssue

	if p.IsRoundTrip != nil && *p.IsRoundTrip && !p.HasReturnDate() {
		issues = append(issues, ValidationIssue{
			Code:    IssueMissingReturnDate,
			Message: "search is marked round-trip but no return date was supplied",
		})
	}
	if p.HasReturnDate() && p.IsRoundTrip != nil && !*p.IsRoundTrip {
		issues = append(issues, ValidationIssue{
			Code:    IssueConflictingOneWay,
			Message: "a return date was supplied for a search explicitly marked one-way",
		})
	}

	return ValidationResult{IsValid: len(issues) == 0, Errors: issues}
}
