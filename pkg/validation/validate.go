// Package validation applies configurable shape rules to incoming
// records before they reach the store. Relational invariants (name
// uniqueness, link targets) are the store's job, not this package's.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Rules holds the configured limits. Zero values disable a check.
type Rules struct {
	MaxBodyBytes int
	MaxSources   int
	MaxNameBytes int
	Roles        []string
}

// Defaults are deliberately permissive; config tightens them.
var rules = Rules{}

func SetRules(r Rules) { rules = r }

// ValidateMessage checks body length, source count and the role enum.
func ValidateMessage(body, role string, sources []string) error {
	var errs []string
	if rules.MaxBodyBytes > 0 && len(body) > rules.MaxBodyBytes {
		errs = append(errs, fmt.Sprintf("body too large: %d > %d", len(body), rules.MaxBodyBytes))
	}
	if rules.MaxSources > 0 && len(sources) > rules.MaxSources {
		errs = append(errs, fmt.Sprintf("too many sources: %d > %d", len(sources), rules.MaxSources))
	}
	if role != "" && len(rules.Roles) > 0 && !contains(rules.Roles, role) {
		errs = append(errs, fmt.Sprintf("invalid role %q", role))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateUserName checks that a name is present and within limits.
func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if rules.MaxNameBytes > 0 && len(name) > rules.MaxNameBytes {
		return fmt.Errorf("name too long: %d > %d", len(name), rules.MaxNameBytes)
	}
	return nil
}

func contains(vals []string, s string) bool {
	for _, v := range vals {
		if v == s {
			return true
		}
	}
	return false
}
