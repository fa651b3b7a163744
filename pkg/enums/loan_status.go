package enums

import "fmt"

// LoanStatus mirrors the physical-custody side effects applied by the
// overdue scheduler and return approval. The source system stored this as
// free text next to the enum-typed request status; both are closed enums
// here so the two columns cannot drift into unknown values.
type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "BORROWED"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
	LoanStatusReturned LoanStatus = "RETURNED"
)

var validLoanStatuses = []LoanStatus{
	LoanStatusBorrowed,
	LoanStatusOverdue,
	LoanStatusReturned,
}

// String implements fmt.Stringer.
func (s LoanStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LoanStatus.
func (s LoanStatus) IsValid() bool {
	for _, candidate := range validLoanStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLoanStatus converts raw input into a LoanStatus.
func ParseLoanStatus(value string) (LoanStatus, error) {
	for _, candidate := range validLoanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan status %q", value)
}
