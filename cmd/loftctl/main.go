// loftctl is a small operator tool for putting teams, recipients, and forms
// into a formloft database.
//
// Usage:
//
//	loftctl -db ./data/formloft.db create-team -name "Acme" [-openai-key sk-...]
//	loftctl -db ./data/formloft.db create-recipient -team <team-id> -email ops@acme.com
//	loftctl -db ./data/formloft.db create-form -team <team-id> -name "Contact" \
//	    -recipients <id>,<id> [-form-id custom-id] [-spam-filter] [-spam-prompt "..."]
//	loftctl -db ./data/formloft.db list-forms -team <team-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/formloft/formloft/internal/domain"
	"github.com/formloft/formloft/internal/storage/sqlite"
)

const defaultSpamPrompt = "This is a general contact form. Filter out spam, promotional content, " +
	"automated submissions, and messages that are not genuine contact attempts from real people " +
	"seeking to communicate."

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	global := flag.NewFlagSet("loftctl", flag.ExitOnError)
	dbPath := global.String("db", "./data/formloft.db", "path to the formloft database")

	// Flags before the subcommand: loftctl -db path <command> ...
	args := os.Args[1:]
	if err := global.Parse(args); err != nil {
		os.Exit(2)
	}
	rest := global.Args()
	if len(rest) == 0 {
		usage()
		os.Exit(2)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		fatal("failed to open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	command, cmdArgs := rest[0], rest[1:]

	switch command {
	case "create-team":
		createTeam(ctx, store, cmdArgs)
	case "create-recipient":
		createRecipient(ctx, store, cmdArgs)
	case "create-form":
		createForm(ctx, store, cmdArgs)
	case "list-forms":
		listForms(ctx, store, cmdArgs)
	default:
		usage()
		os.Exit(2)
	}
}

func createTeam(ctx context.Context, store *sqlite.Store, args []string) {
	fs := flag.NewFlagSet("create-team", flag.ExitOnError)
	name := fs.String("name", "", "team name")
	openaiKey := fs.String("openai-key", "", "team-supplied OpenAI API key for spam filtering")
	fs.Parse(args)

	if *name == "" {
		fatal("create-team: -name is required")
	}

	team := &domain.Team{ID: uuid.New().String(), Name: *name, OpenAIKey: *openaiKey}
	if err := store.CreateTeam(ctx, team); err != nil {
		fatal("create-team: %v", err)
	}
	fmt.Println(team.ID)
}

func createRecipient(ctx context.Context, store *sqlite.Store, args []string) {
	fs := flag.NewFlagSet("create-recipient", flag.ExitOnError)
	teamID := fs.String("team", "", "owning team id")
	email := fs.String("email", "", "recipient email address")
	fs.Parse(args)

	if *teamID == "" || *email == "" {
		fatal("create-recipient: -team and -email are required")
	}

	rec := &domain.Recipient{ID: uuid.New().String(), TeamID: *teamID, Email: *email}
	if err := store.CreateRecipient(ctx, rec); err != nil {
		fatal("create-recipient: %v", err)
	}
	fmt.Println(rec.ID)
}

func createForm(ctx context.Context, store *sqlite.Store, args []string) {
	fs := flag.NewFlagSet("create-form", flag.ExitOnError)
	teamID := fs.String("team", "", "owning team id")
	name := fs.String("name", "", "form display name")
	formID := fs.String("form-id", "", "public form id (generated when empty)")
	recipients := fs.String("recipients", "", "comma-separated recipient ids")
	spamFilter := fs.Bool("spam-filter", false, "enable AI spam filtering")
	spamPrompt := fs.String("spam-prompt", defaultSpamPrompt, "spam filter prompt")
	fs.Parse(args)

	if *teamID == "" || *name == "" {
		fatal("create-form: -team and -name are required")
	}

	publicID := *formID
	if publicID == "" {
		publicID = generateFormID()
	}

	var refs []domain.RecipientRef
	for _, id := range strings.Split(*recipients, ",") {
		if id = strings.TrimSpace(id); id != "" {
			refs = append(refs, domain.UnresolvedRecipient(id))
		}
	}

	form := &domain.Form{
		ID:                uuid.New().String(),
		FormID:            publicID,
		Name:              *name,
		Team:              domain.UnresolvedTeam(*teamID),
		Recipients:        refs,
		SpamFilterEnabled: *spamFilter,
		SpamFilterPrompt:  *spamPrompt,
	}
	if err := store.CreateForm(ctx, form); err != nil {
		fatal("create-form: %v", err)
	}
	fmt.Println(publicID)
}

func listForms(ctx context.Context, store *sqlite.Store, args []string) {
	fs := flag.NewFlagSet("list-forms", flag.ExitOnError)
	teamID := fs.String("team", "", "team id")
	fs.Parse(args)

	if *teamID == "" {
		fatal("list-forms: -team is required")
	}

	forms, err := store.ListForms(ctx, *teamID)
	if err != nil {
		fatal("list-forms: %v", err)
	}
	for _, form := range forms {
		fmt.Printf("%s\t%s\trecipients=%d\tspam_filter=%v\n",
			form.FormID, form.Name, len(form.Recipients), form.SpamFilterEnabled)
	}
}

// generateFormID produces a short public id for embedding in endpoint URLs.
func generateFormID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: loftctl [-db path] <create-team|create-recipient|create-form|list-forms> [flags]")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
