// Package storage defines the persistence interfaces for formloft.
package storage

import (
	"context"
	"errors"

	"github.com/formloft/formloft/internal/domain"
)

// ErrFormNotFound is returned when no form exists for a public form id.
var ErrFormNotFound = errors.New("form not found")

// FormStore is the read surface the submission pipeline depends on. The
// returned form has its team and recipient references resolved where the
// backing rows exist; dangling references stay in the unresolved variant.
type FormStore interface {
	FindFormByPublicID(ctx context.Context, formID string) (*domain.Form, error)
}

// AdminStore is the mutation surface used by loftctl and tests. The dashboard
// CRUD layer of the hosted product is out of scope; this is the minimal set
// needed to put rows into the store.
type AdminStore interface {
	FormStore

	CreateTeam(ctx context.Context, team *domain.Team) error
	CreateRecipient(ctx context.Context, rec *domain.Recipient) error
	CreateForm(ctx context.Context, form *domain.Form) error
	ListForms(ctx context.Context, teamID string) ([]*domain.Form, error)
}
