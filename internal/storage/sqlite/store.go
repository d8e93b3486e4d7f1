// Package sqlite implements the formloft stores on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/formloft/formloft/internal/domain"
	"github.com/formloft/formloft/internal/storage"
)

// Store is a SQLite implementation of FormStore and AdminStore.
type Store struct {
	db *sql.DB
}

var _ storage.AdminStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			openai_key TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS recipients (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			email TEXT NOT NULL,
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS forms (
			id TEXT PRIMARY KEY,
			form_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			team_id TEXT NOT NULL,
			spam_filter_enabled INTEGER NOT NULL DEFAULT 0,
			spam_filter_prompt TEXT,
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS form_recipients (
			form_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (form_id, recipient_id),
			FOREIGN KEY (form_id) REFERENCES forms(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forms_public_id ON forms(form_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_team ON recipients(team_id)`,
		`CREATE INDEX IF NOT EXISTS idx_form_recipients_form ON form_recipients(form_id, position)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// FindFormByPublicID resolves a form, its owning team, and its recipient list
// in recipient order. Recipient rows that no longer exist stay unresolved so
// the pipeline can skip them without runtime type inspection.
func (s *Store) FindFormByPublicID(ctx context.Context, formID string) (*domain.Form, error) {
	query := `SELECT id, form_id, name, team_id, spam_filter_enabled, spam_filter_prompt
	          FROM forms WHERE form_id = ?`

	var form domain.Form
	var teamID string
	var spamEnabled int
	var prompt sql.NullString

	err := s.db.QueryRowContext(ctx, query, formID).Scan(
		&form.ID, &form.FormID, &form.Name, &teamID, &spamEnabled, &prompt)

	if err == sql.ErrNoRows {
		return nil, storage.ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	form.SpamFilterEnabled = spamEnabled != 0
	if prompt.Valid {
		form.SpamFilterPrompt = prompt.String
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team != nil {
		form.Team = domain.ResolvedTeam(team)
	} else {
		form.Team = domain.UnresolvedTeam(teamID)
	}

	recipients, err := s.getFormRecipients(ctx, form.ID)
	if err != nil {
		return nil, err
	}
	form.Recipients = recipients

	return &form, nil
}

func (s *Store) getTeam(ctx context.Context, id string) (*domain.Team, error) {
	var team domain.Team
	var key sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, openai_key FROM teams WHERE id = ?`, id).
		Scan(&team.ID, &team.Name, &key)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	if key.Valid {
		team.OpenAIKey = key.String
	}
	return &team, nil
}

func (s *Store) getFormRecipients(ctx context.Context, formID string) ([]domain.RecipientRef, error) {
	query := `SELECT fr.recipient_id, r.id, r.team_id, r.email
	          FROM form_recipients fr
	          LEFT JOIN recipients r ON r.id = fr.recipient_id
	          WHERE fr.form_id = ?
	          ORDER BY fr.position ASC`

	rows, err := s.db.QueryContext(ctx, query, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var refs []domain.RecipientRef
	for rows.Next() {
		var refID string
		var id, teamID, email sql.NullString

		if err := rows.Scan(&refID, &id, &teamID, &email); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}

		if id.Valid {
			refs = append(refs, domain.ResolvedRecipient(&domain.Recipient{
				ID:     id.String,
				TeamID: teamID.String,
				Email:  email.String,
			}))
		} else {
			refs = append(refs, domain.UnresolvedRecipient(refID))
		}
	}

	return refs, rows.Err()
}

func (s *Store) CreateTeam(ctx context.Context, team *domain.Team) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, openai_key) VALUES (?, ?, ?)`,
		team.ID, team.Name, team.OpenAIKey)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (s *Store) CreateRecipient(ctx context.Context, rec *domain.Recipient) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients (id, team_id, email) VALUES (?, ?, ?)`,
		rec.ID, rec.TeamID, rec.Email)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

func (s *Store) CreateForm(ctx context.Context, form *domain.Form) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	spamEnabled := 0
	if form.SpamFilterEnabled {
		spamEnabled = 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO forms (id, form_id, name, team_id, spam_filter_enabled, spam_filter_prompt)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		form.ID, form.FormID, form.Name, form.Team.ID(), spamEnabled, form.SpamFilterPrompt)
	if err != nil {
		return fmt.Errorf("failed to create form: %w", err)
	}

	for i, ref := range form.Recipients {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO form_recipients (form_id, recipient_id, position) VALUES (?, ?, ?)`,
			form.ID, ref.ID(), i)
		if err != nil {
			return fmt.Errorf("failed to link recipient: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListForms(ctx context.Context, teamID string) ([]*domain.Form, error) {
	query := `SELECT form_id FROM forms WHERE team_id = ? ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query forms: %w", err)
	}
	defer rows.Close()

	var publicIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}
		publicIDs = append(publicIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	forms := make([]*domain.Form, 0, len(publicIDs))
	for _, id := range publicIDs {
		form, err := s.FindFormByPublicID(ctx, id)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}

	return forms, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
