package ovo

import "strings"

// TriggerSet is a list of substrings matched against fullnames. Matching is
// by containment, so "VersionedObjectRegistry" matches
// "oslo_versionedobjects.base.VersionedObjectRegistry.objectify".
type TriggerSet []string

// Matches reports whether any trigger occurs inside fullname.
func (ts TriggerSet) Matches(fullname string) bool {
	if fullname == "" {
		return false
	}
	for _, trigger := range ts {
		if trigger != "" && strings.Contains(fullname, trigger) {
			return true
		}
	}
	return false
}

// ParseTriggerSet splits a space separated list.
func ParseTriggerSet(value string) TriggerSet {
	return TriggerSet(strings.Fields(value))
}

// IsCandidate reports whether a class with the given decorator fullnames and
// MRO fullnames (excluding the class itself) should be augmented.
func (s Settings) IsCandidate(decorators, mro []string) bool {
	for _, d := range decorators {
		if s.DecoratorClasses.Matches(d) {
			return true
		}
	}
	for _, b := range mro {
		if s.BaseClasses.Matches(b) {
			return true
		}
	}
	return false
}
