package audit

import "strings"

// RoleSet is a set of chat role ids.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from ids, dropping blanks and surrounding spaces.
func NewRoleSet(ids ...string) RoleSet {
	set := make(RoleSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// ParseRoleSet reads a comma-separated id list such as "111, 222".
func ParseRoleSet(csv string) RoleSet {
	return NewRoleSet(strings.Split(csv, ",")...)
}

func (s RoleSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s RoleSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// ShouldRecord is false iff the author holds at least one ignored role.
func ShouldRecord(authorRoleIDs RoleSet, ignoredRoleIDs RoleSet) bool {
	small, large := authorRoleIDs, ignoredRoleIDs
	if len(large) < len(small) {
		small, large = large, small
	}
	for id := range small {
		if large.Contains(id) {
			return false
		}
	}
	return true
}

// ShouldRecordEvent applies ShouldRecord only when the deletion happened
// inside a server; direct-message deletions are always recorded.
func ShouldRecordEvent(guildPresent bool, authorRoleIDs RoleSet, ignoredRoleIDs RoleSet) bool {
	if !guildPresent {
		return true
	}
	return ShouldRecord(authorRoleIDs, ignoredRoleIDs)
}
