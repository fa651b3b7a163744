package enums

import "fmt"

// ReturnRequestStatus tracks the approval workflow of one borrow record.
// NONE, PENDING and REJECTED all count as an active checkout; only APPROVED
// frees the title for re-borrowing by the same patron.
type ReturnRequestStatus string

const (
	ReturnRequestNone     ReturnRequestStatus = "NONE"
	ReturnRequestPending  ReturnRequestStatus = "PENDING"
	ReturnRequestApproved ReturnRequestStatus = "APPROVED"
	ReturnRequestRejected ReturnRequestStatus = "REJECTED"
)

var validReturnRequestStatuses = []ReturnRequestStatus{
	ReturnRequestNone,
	ReturnRequestPending,
	ReturnRequestApproved,
	ReturnRequestRejected,
}

// ActiveReturnRequestStatuses are the statuses under which a borrow record
// still blocks another checkout of the same title by the same patron.
var ActiveReturnRequestStatuses = []ReturnRequestStatus{
	ReturnRequestNone,
	ReturnRequestPending,
	ReturnRequestRejected,
}

// String implements fmt.Stringer.
func (s ReturnRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnRequestStatus.
func (s ReturnRequestStatus) IsValid() bool {
	for _, candidate := range validReturnRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the status still blocks re-borrowing.
func (s ReturnRequestStatus) IsActive() bool {
	for _, candidate := range ActiveReturnRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReturnRequestStatus converts raw input into a ReturnRequestStatus.
func ParseReturnRequestStatus(value string) (ReturnRequestStatus, error) {
	for _, candidate := range validReturnRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return request status %q", value)
}
