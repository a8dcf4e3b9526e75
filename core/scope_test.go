package core

import (
	"errors"
	"testing"
)

func TestScopeAdmin(t *testing.T) {
	var nilScope *Scope
	if !nilScope.Admin() {
		t.Error("nil scope must be admin")
	}
	if !(&Scope{}).Admin() {
		t.Error("nil resource id slice must be admin")
	}
	if NewScope("user-1").Admin() {
		t.Error("scoped identity must not be admin")
	}
}

func TestScopeValidate(t *testing.T) {
	if err := (*Scope)(nil).Validate(); err != nil {
		t.Errorf("nil scope must validate, got %v", err)
	}
	if err := NewScope("user-1").Validate(); err != nil {
		t.Errorf("single scope must validate, got %v", err)
	}
	err := (&Scope{ResourceIDs: []string{}}).Validate()
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("empty non-nil resource id slice must be invalid, got %v", err)
	}
}

func TestScopeAllows(t *testing.T) {
	var admin *Scope
	if !admin.Allows("anything") {
		t.Error("admin scope must allow every resource")
	}

	group := GroupScope("team-a", "team-b")
	if !group.Allows("team-b") {
		t.Error("group scope must allow member resource")
	}
	if group.Allows("team-c") {
		t.Error("group scope must reject non-member resource")
	}
}

func TestScopeOwner(t *testing.T) {
	if owner := GroupScope("team-a", "team-b").Owner(); owner != "team-a" {
		t.Errorf("expected first resource id as owner, got %q", owner)
	}
	var admin *Scope
	if owner := admin.Owner(); owner != "" {
		t.Errorf("admin scope has no owner, got %q", owner)
	}
}
