// Package domain holds the records the submission pipeline operates on.
// Relational references are tagged unions: a reference is either unresolved
// (carrying only the foreign id) or resolved (carrying the full record). The
// storage layer resolves references before records reach business logic, so
// handlers never perform runtime type inspection.
package domain

// Team owns forms and recipients. OpenAIKey is supplied by the team itself and
// is used only for spam filtering, so usage bills to the team.
type Team struct {
	ID        string
	Name      string
	OpenAIKey string
}

// Recipient is an email address belonging to a team. Forms reference
// recipients rather than embedding addresses.
type Recipient struct {
	ID     string
	TeamID string
	Email  string
}

// Form is the unit a public endpoint is generated for.
type Form struct {
	ID                string
	FormID            string // public, user-chosen, unique
	Name              string
	Team              TeamRef
	Recipients        []RecipientRef
	SpamFilterEnabled bool
	SpamFilterPrompt  string
}

// Field is a single name/value pair extracted from a submission. Fields are
// ephemeral: they live for one request and are discarded once the email is
// composed.
type Field struct {
	Name  string
	Value string
}

// TeamRef is either Unresolved(id) or Resolved(team).
type TeamRef struct {
	id   string
	team *Team
}

// UnresolvedTeam returns a reference carrying only the foreign id.
func UnresolvedTeam(id string) TeamRef {
	return TeamRef{id: id}
}

// ResolvedTeam returns a reference carrying the full record.
func ResolvedTeam(t *Team) TeamRef {
	if t == nil {
		return TeamRef{}
	}
	return TeamRef{id: t.ID, team: t}
}

// ID returns the referenced team id regardless of variant.
func (r TeamRef) ID() string { return r.id }

// Resolved returns the team record if this reference carries one.
func (r TeamRef) Resolved() (*Team, bool) {
	if r.team == nil {
		return nil, false
	}
	return r.team, true
}

// RecipientRef is either Unresolved(id) or Resolved(recipient).
type RecipientRef struct {
	id        string
	recipient *Recipient
}

// UnresolvedRecipient returns a reference carrying only the foreign id.
func UnresolvedRecipient(id string) RecipientRef {
	return RecipientRef{id: id}
}

// ResolvedRecipient returns a reference carrying the full record.
func ResolvedRecipient(rec *Recipient) RecipientRef {
	if rec == nil {
		return RecipientRef{}
	}
	return RecipientRef{id: rec.ID, recipient: rec}
}

// ID returns the referenced recipient id regardless of variant.
func (r RecipientRef) ID() string { return r.id }

// Resolved returns the recipient record if this reference carries one.
func (r RecipientRef) Resolved() (*Recipient, bool) {
	if r.recipient == nil {
		return nil, false
	}
	return r.recipient, true
}
