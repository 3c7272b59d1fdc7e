package validation

import (
	"strings"
	"testing"
)

func TestValidateMessage(t *testing.T) {
	SetRules(Rules{MaxBodyBytes: 10, MaxSources: 2, Roles: []string{"user", "assistant"}})
	defer SetRules(Rules{})

	if err := ValidateMessage("hi", "user", nil); err != nil {
		t.Fatalf("valid message: %v", err)
	}
	if err := ValidateMessage(strings.Repeat("x", 11), "user", nil); err == nil {
		t.Fatalf("oversized body accepted")
	}
	if err := ValidateMessage("hi", "user", []string{"a", "b", "c"}); err == nil {
		t.Fatalf("too many sources accepted")
	}
	if err := ValidateMessage("hi", "robot", nil); err == nil {
		t.Fatalf("unknown role accepted")
	}
	// empty role skips the enum check
	if err := ValidateMessage("hi", "", nil); err != nil {
		t.Fatalf("empty role: %v", err)
	}

	// multiple failures are joined into one error
	err := ValidateMessage(strings.Repeat("x", 11), "robot", []string{"a", "b", "c"})
	if err == nil || !strings.Contains(err.Error(), ";") {
		t.Fatalf("joined errors: %v", err)
	}
}

func TestValidateMessageZeroRulesPermissive(t *testing.T) {
	SetRules(Rules{})
	if err := ValidateMessage(strings.Repeat("x", 1<<20), "anything", make([]string, 100)); err != nil {
		t.Fatalf("zero rules must disable checks: %v", err)
	}
}

func TestValidateUserName(t *testing.T) {
	SetRules(Rules{MaxNameBytes: 8})
	defer SetRules(Rules{})

	if err := ValidateUserName("alice"); err != nil {
		t.Fatalf("valid name: %v", err)
	}
	if err := ValidateUserName(""); err == nil {
		t.Fatalf("empty name accepted")
	}
	if err := ValidateUserName("   "); err == nil {
		t.Fatalf("blank name accepted")
	}
	if err := ValidateUserName("verylongname"); err == nil {
		t.Fatalf("oversized name accepted")
	}
}
