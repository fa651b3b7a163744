package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
)

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeConflict, http.StatusConflict},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := MetadataFor(tt.code).HTTPStatus; got != tt.status {
			t.Fatalf("MetadataFor(%s) = %d, want %d", tt.code, got, tt.status)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(CodeNotFound, cause, "borrow record not found")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("unexpected code: %s", err.Code())
	}
	if err.Error() != "NOT_FOUND: borrow record not found" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAsUnwrapsThroughFmt(t *testing.T) {
	inner := New(CodeStateConflict, "return already approved")
	wrapped := fmt.Errorf("approve return: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeStateConflict {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestAsNil(t *testing.T) {
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	if As(errors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed").WithDetails(map[string]string{"bookId": "is required"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["bookId"] != "is required" {
		t.Fatalf("unexpected details: %v", err.Details())
	}
}

func TestDumpSurfacesConstraintNames(t *testing.T) {
	cause := &pq.Error{
		Code:       "23505",
		Constraint: "ux_borrow_records_active",
		Table:      "borrow_records",
		Message:    "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("create record: %w", cause), "loan already active")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("unexpected code: %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_borrow_records_active" || dump.PGTable != "borrow_records" {
		t.Fatalf("driver fields not surfaced: %+v", dump)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected unwrapped chain, got %v", dump.Chain)
	}
}

func TestDumpNil(t *testing.T) {
	if dump := Dump(nil); dump.TopMessage != "" || dump.Code != "" {
		t.Fatalf("expected zero dump, got %+v", dump)
	}
}
