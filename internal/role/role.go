// AngelaMos | 2026
// role.go

package role

import (
	"encoding/json"
	"strings"
)

const (
	Admin  = "admin"
	Member = "member"
)

func Normalize(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}

// Valid reports whether r names a role the system assigns.
func Valid(r string) bool {
	switch Normalize(r) {
	case Admin, Member:
		return true
	}
	return false
}

// IsAdminEmail reports whether email belongs to the admin domain. The match
// is a case-insensitive suffix check on "@domain".
func IsAdminEmail(email, domain string) bool {
	domain = strings.TrimPrefix(Normalize(domain), "@")
	if domain == "" {
		return false
	}
	return strings.HasSuffix(Normalize(email), "@"+domain)
}

// ForEmail is the role a new account receives at registration.
func ForEmail(email, domain string) string {
	if IsAdminEmail(email, domain) {
		return Admin
	}
	return Member
}

// Document is a stored profile's role information as it appears on the
// wire. Older records carry a scalar "role", newer ones a "roles" array.
type Document struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// UnmarshalJSON tolerates "roles" given as a single string.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string          `json:"role"`
		Roles json.RawMessage `json:"roles"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Role = raw.Role
	d.Roles = nil

	if len(raw.Roles) == 0 || string(raw.Roles) == "null" {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw.Roles, &list); err == nil {
		d.Roles = list
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Roles, &single); err != nil {
		return err
	}
	if single != "" {
		d.Roles = []string{single}
	}
	return nil
}

// Primary derives the effective role: the first array element, else the
// scalar field, else member.
func (d Document) Primary() string {
	for _, r := range d.Roles {
		if n := Normalize(r); n != "" {
			return n
		}
	}
	if n := Normalize(d.Role); n != "" {
		return n
	}
	return Member
}

// Set returns every role the document grants, normalized.
func (d Document) Set() Set {
	s := NewSet(d.Roles...)
	if n := Normalize(d.Role); n != "" {
		s[n] = struct{}{}
	}
	return s
}

type Set map[string]struct{}

func NewSet(roles ...string) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		if n := Normalize(r); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s Set) Intersects(other Set) bool {
	for r := range s {
		if _, ok := other[r]; ok {
			return true
		}
	}
	return false
}

// Authorized applies the guard rule: no allowed roles means unrestricted,
// otherwise any overlap between held and allowed grants access.
func Authorized(held Set, allowed ...string) bool {
	want := NewSet(allowed...)
	if len(want) == 0 {
		return true
	}
	return held.Intersects(want)
}
