package intent

import (
	"testing"

	"socroom/internal/roster"
)

func testRegistry(t *testing.T) *roster.Registry {
	t.Helper()
	reg, err := roster.New(roster.Default())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func TestHandoffTarget_OnlyFromPrimary(t *testing.T) {
	c := NewClassifier(testRegistry(t))

	text := "let me check with our security team about this threat"
	if _, ok := c.HandoffTarget(text, roster.RoleSecurity); ok {
		t.Error("handoff detected from a non-primary speaker")
	}
	if _, ok := c.HandoffTarget(text, roster.RoleTravel); ok {
		t.Error("handoff detected from a non-primary speaker")
	}

	target, ok := c.HandoffTarget(text, roster.Primary)
	if !ok {
		t.Fatal("expected a handoff from the primary")
	}
	if target != roster.RoleSecurity {
		t.Errorf("expected security, got %s", target)
	}
}

func TestHandoffTarget_NoPhraseNoHandoff(t *testing.T) {
	c := NewClassifier(testRegistry(t))

	// Keywords alone are not a handoff; the phrase is required.
	if _, ok := c.HandoffTarget("there is a security threat here", roster.Primary); ok {
		t.Error("handoff without a handoff phrase")
	}
	// A phrase with no matching trigger keyword resolves to nothing.
	if _, ok := c.HandoffTarget("let me check with the kitchen about lunch", roster.Primary); ok {
		t.Error("handoff with no specialist keyword")
	}
}

func TestHandoffTarget_CaseInsensitive(t *testing.T) {
	c := NewClassifier(testRegistry(t))

	target, ok := c.HandoffTarget("LET ME CHECK WITH our TRAVEL expert", roster.Primary)
	if !ok || target != roster.RoleTravel {
		t.Errorf("expected travel handoff, got %q ok=%v", target, ok)
	}
}

func TestHandoffTarget_DeclarationOrderTieBreak(t *testing.T) {
	c := NewClassifier(testRegistry(t))

	// Both security and travel triggers appear; security is declared first.
	target, ok := c.HandoffTarget("I'll transfer you to the team for the threat at the hotel", roster.Primary)
	if !ok {
		t.Fatal("expected a handoff")
	}
	if target != roster.RoleSecurity {
		t.Errorf("tie-break should pick the first declared role, got %s", target)
	}
}

func TestRelevantSpecialists_RequiresTwoMatches(t *testing.T) {
	c := NewClassifier(testRegistry(t))

	if got := c.RelevantSpecialists("there is a threat"); len(got) != 0 {
		t.Errorf("one keyword should not qualify, got %v", got)
	}

	got := c.RelevantSpecialists("a suspicious man made a threat near my hotel after my flight")
	want := []roster.Role{roster.RoleSecurity, roster.RoleTravel}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRelevantSpecialists_OrderAndNoDuplicates(t *testing.T) {
	c := NewClassifier(testRegistry(t))

	// Hits travel, security, and medical; output must follow roster
	// declaration order regardless of where words appear in the text.
	text := "after the injury I need a doctor, the flight route is unsafe and I feel followed"
	got := c.RelevantSpecialists(text)

	seen := map[roster.Role]bool{}
	for _, r := range got {
		if seen[r] {
			t.Fatalf("duplicate role %s in %v", r, got)
		}
		seen[r] = true
	}

	order := map[roster.Role]int{}
	for i, m := range testRegistry(t).Specialists() {
		order[m.Role] = i
	}
	for i := 1; i < len(got); i++ {
		if order[got[i-1]] > order[got[i]] {
			t.Errorf("output not in declaration order: %v", got)
		}
	}
}

func TestRelevantSpecialists_Empty(t *testing.T) {
	c := NewClassifier(testRegistry(t))
	if got := c.RelevantSpecialists("lovely weather today"); len(got) != 0 {
		t.Errorf("expected no specialists, got %v", got)
	}
}

func TestIsUncertain(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I'm not sure what to make of this", true},
		{"The situation is UNCLEAR at the moment", true},
		{"Let me consult on that", true},
		{"Everything is fine", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsUncertain(tc.text); got != tc.want {
			t.Errorf("IsUncertain(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
