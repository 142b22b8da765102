package unimodel_test

import (
	"errors"
	"testing"

	"github.com/reoring/unimodel"
)

func TestIssues_ErrorSummary(t *testing.T) {
	iss := unimodel.Issues{
		{Path: "/a", Code: unimodel.CodeRequired},
		{Path: "/b", Code: unimodel.CodeInvalidType},
		{Path: "/c", Code: unimodel.CodeInvalidEnum},
		{Path: "/d", Code: unimodel.CodeOverflow},
	}
	got := iss.Error()
	want := "required at /a; invalid_type at /b; invalid_enum at /c; ... (total 4)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if out, ok := unimodel.AsIssues(iss); !ok || len(out) != 4 {
		t.Fatalf("AsIssues failed: %v %v", out, ok)
	}
}

func TestIssuesOf(t *testing.T) {
	if iss := unimodel.IssuesOf(nil); iss != nil {
		t.Fatalf("expected nil, got %v", iss)
	}
	joined := errors.Join(
		&unimodel.ProtocolError{Protocol: "binary", Err: errors.New("short read")},
		&unimodel.DuplicateFieldError{Struct: "S", Name: "a"},
	)
	iss := unimodel.IssuesOf(joined)
	if len(iss) != 2 {
		t.Fatalf("expected 2 issues, got %v", iss)
	}
	if iss[0].Code != unimodel.CodeProtocol || iss[1].Code != unimodel.CodeDuplicateField {
		t.Fatalf("unexpected codes: %v", iss)
	}
	plain := unimodel.IssuesOf(errors.New("boom"))
	if len(plain) != 1 || plain[0].Path != "/" || plain[0].Code != unimodel.CodeInvalid {
		t.Fatalf("unexpected issues: %v", plain)
	}
}

func TestJSONValidationError_IssuePathJoinsInner(t *testing.T) {
	inner := &unimodel.ValidationError{Path: unimodel.Path{}.Field("name"), Code: unimodel.CodeRequired}
	err := &unimodel.JSONValidationError{Path: unimodel.Path{}.Field("items").Index(2), Struct: "Item", Err: inner}
	iss := unimodel.IssuesOf(err)
	if len(iss) != 1 || iss[0].Path != "/items/2/name" {
		t.Fatalf("unexpected issues: %v", iss)
	}
}

func TestPath(t *testing.T) {
	p := unimodel.Path{}.Field("u").Index(0).Field("m").Key("a/b").Key(int64(3))
	if got := p.String(); got != `u[0].m["a/b"][3]` {
		t.Fatalf("String = %q", got)
	}
	if got := p.Pointer(); got != "/u/0/m/a~1b/3" {
		t.Fatalf("Pointer = %q", got)
	}
	if got := (unimodel.Path{}).Pointer(); got != "/" {
		t.Fatalf("root pointer = %q", got)
	}
}
