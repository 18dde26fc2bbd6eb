// Package roster defines the fixed team of conversational specialists and
// the registry mapping each role to its backend agent and routing keywords.
// The registry is built once at startup and injected; declaration order of
// the roster is the tie-break order for every routing decision.
package roster

import (
	"fmt"
	"strings"
)

// Role identifies one member of the team.
type Role string

const (
	RoleOfficer    Role = "officer" // primary contact, triages and hands off
	RoleSecurity   Role = "security"
	RoleTravel     Role = "travel"
	RoleResearcher Role = "researcher"
	RoleContacts   Role = "contacts"
	RoleMedical    Role = "medical"
)

// Primary is the first-line role that owns routing decisions.
const Primary = RoleOfficer

// Status describes what a specialist is currently doing in the room.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusTasked   Status = "tasked" // queued for consultation
	StatusActive   Status = "active" // holds the live session
	StatusSpeaking Status = "speaking"
)

// Specialist is one immutable roster entry.
type Specialist struct {
	Role     Role
	Name     string // display name, e.g. "Client Officer"
	Title    string // short responsibility line, e.g. "Threat Assessment"
	AgentID  string // backend agent identifier; empty = not configured
	Topics   []string
	Triggers []string // keywords that resolve an explicit handoff
}

// Configured reports whether the specialist has a backend agent to dial.
func (s Specialist) Configured() bool {
	return s.AgentID != ""
}

// Registry holds the roster in declaration order.
type Registry struct {
	members []Specialist
	byRole  map[Role]int
}

// New builds a registry from roster entries. Order is preserved and
// significant. The primary role must be present exactly once.
func New(members []Specialist) (*Registry, error) {
	r := &Registry{byRole: make(map[Role]int, len(members))}
	for _, m := range members {
		if m.Role == "" {
			return nil, fmt.Errorf("roster entry %q has no role", m.Name)
		}
		if _, dup := r.byRole[m.Role]; dup {
			return nil, fmt.Errorf("duplicate roster role %q", m.Role)
		}
		r.byRole[m.Role] = len(r.members)
		r.members = append(r.members, m)
	}
	if _, ok := r.byRole[Primary]; !ok {
		return nil, fmt.Errorf("roster is missing the primary role %q", Primary)
	}
	return r, nil
}

// Get returns the specialist for a role.
func (r *Registry) Get(role Role) (Specialist, bool) {
	i, ok := r.byRole[role]
	if !ok {
		return Specialist{}, false
	}
	return r.members[i], true
}

// Members returns the roster in declaration order.
func (r *Registry) Members() []Specialist {
	out := make([]Specialist, len(r.members))
	copy(out, r.members)
	return out
}

// Specialists returns every non-primary member in declaration order.
func (r *Registry) Specialists() []Specialist {
	var out []Specialist
	for _, m := range r.members {
		if m.Role != Primary {
			out = append(out, m)
		}
	}
	return out
}

// DisplayName returns the member's display name, or the raw role if the
// role is unknown (defensive for transcripts attributed to "user").
func (r *Registry) DisplayName(role Role) string {
	if m, ok := r.Get(role); ok {
		return m.Name
	}
	return string(role)
}

// ParseRole normalizes user-supplied role names ("Security", "officer").
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	switch role {
	case RoleOfficer, RoleSecurity, RoleTravel, RoleResearcher, RoleContacts, RoleMedical:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Default returns the built-in roster. Agent IDs are left empty here;
// they come from config or environment overrides.
func Default() []Specialist {
	return []Specialist{
		{
			Role:  RoleOfficer,
			Name:  "Client Officer",
			Title: "Primary Contact",
		},
		{
			Role:  RoleSecurity,
			Name:  "Security",
			Title: "Threat Assessment",
			Topics: []string{
				"threat", "danger", "unsafe", "followed", "suspicious",
				"attack", "weapon", "robbery", "assault", "stalker",
				"break-in", "surveillance", "emergency",
			},
			Triggers: []string{"security", "threat", "safety", "danger"},
		},
		{
			Role:  RoleTravel,
			Name:  "Travel Expert",
			Title: "Location Intel",
			Topics: []string{
				"travel", "flight", "hotel", "airport", "visa",
				"border", "route", "neighborhood", "city", "country",
				"evacuation", "transport",
			},
			Triggers: []string{"travel", "flight", "hotel", "location"},
		},
		{
			Role:  RoleResearcher,
			Name:  "Researcher",
			Title: "Real-time Info",
			Topics: []string{
				"research", "news", "information", "report", "verify",
				"background", "history", "records", "data",
			},
			Triggers: []string{"research", "look up", "verify", "information"},
		},
		{
			Role:  RoleContacts,
			Name:  "Contact Agent",
			Title: "Local Resources",
			Topics: []string{
				"contact", "embassy", "police", "consulate", "lawyer",
				"fixer", "driver", "local", "number", "hospital",
			},
			Triggers: []string{"contact", "embassy", "police", "local"},
		},
		{
			Role:  RoleMedical,
			Name:  "Medical Advisor",
			Title: "Health & Injury",
			Topics: []string{
				"medical", "injury", "sick", "hospital", "medication",
				"doctor", "symptoms", "pain", "allergy", "bleeding",
			},
			Triggers: []string{"medical", "doctor", "injury", "health"},
		},
	}
}
