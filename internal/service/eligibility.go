package service

import "fmt"

// EligibilityRule — какие команды студент может оценивать.
type EligibilityRule string

const (
	// SameGroup — только команды своей группы.
	SameGroup EligibilityRule = "same_group"
	// CrossGroup — только команды чужих групп.
	CrossGroup EligibilityRule = "cross_group"
)

func ParseEligibilityRule(s string) (EligibilityRule, error) {
	switch r := EligibilityRule(s); r {
	case SameGroup, CrossGroup:
		return r, nil
	}
	return "", fmt.Errorf("unknown eligibility rule %q", s)
}

func (r EligibilityRule) Allows(evaluatorGroup, teamGroup int64) bool {
	if r == CrossGroup {
		return evaluatorGroup != teamGroup
	}
	return evaluatorGroup == teamGroup
}
