package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/config"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/database"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/identity"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/localstore"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/search"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// profile is the persisted browser-equivalent state: one SQLite file holding
// the key-value entries the identity store reads and writes.
type profile struct {
	Identity *identity.Store
	close    func() error
}

func (p *profile) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

func openProfile(path string, logger *zap.Logger) (*profile, error) {
	db, err := database.OpenSQLite(path, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	storage, err := localstore.NewSQLiteStore(db, time.Now)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	store, err := identity.NewStore(identity.StoreConfig{
		Storage: storage,
		Clock:   time.Now,
		Logger:  logger,
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &profile{Identity: store, close: sqlDB.Close}, nil
}

func loadClientEnvironment() (config.AppConfig, *zap.Logger, error) {
	appConfig, err := config.LoadClient(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger, err := logging.NewConsoleLogger(appConfig.LogLevel)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return appConfig, logger, nil
}

func withProfile(run func(cmd *cobra.Command, args []string, store *identity.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appConfig, logger, err := loadClientEnvironment()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		p, err := openProfile(appConfig.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		return run(cmd, args, p.Identity)
	}
}

func newSearchCommand() *cobra.Command {
	var (
		location string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "search [name]",
		Short: "Search public profiles for a person",
		Long: `Sends the name to the search webhook and prints the results grouped
by platform. Only LinkedIn, Facebook and Twitter results are listed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, logger, err := loadClientEnvironment()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			client, err := newSearchClient(appConfig, logger)
			if err != nil {
				return err
			}

			params := search.Params{"query": strings.Join(args, " ")}
			if location != "" {
				params["location"] = location
			}

			records, err := client.Search(cmd.Context(), params)
			if err != nil {
				return errors.New(search.UserMessage(err))
			}

			buckets := search.Bucket(records)
			if asJSON {
				return outputSearchJSON(cmd, buckets)
			}
			outputSearchTable(cmd, buckets)
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "optional location hint forwarded to the webhook")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func outputSearchJSON(cmd *cobra.Command, buckets search.ResultSet) error {
	data, err := json.MarshalIndent(buckets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, buckets search.ResultSet) {
	if buckets.Total() == 0 {
		cmd.Println("No results found.")
		return
	}

	sections := []struct {
		title   string
		records []search.PersonRecord
	}{
		{title: search.SourceLinkedIn, records: buckets.LinkedIn},
		{title: search.SourceFacebook, records: buckets.Facebook},
		{title: search.SourceTwitter, records: buckets.Twitter},
	}
	for _, section := range sections {
		if len(section.records) == 0 {
			continue
		}
		cmd.Println(sectionStyle.Render(fmt.Sprintf("%s (%d)", section.title, len(section.records))))
		for i, record := range section.records {
			cmd.Printf("  [%d] %s\n", i+1, record.Name)
			if record.Link != "" {
				cmd.Printf("      %s\n", record.Link)
			}
			if record.Description != "" {
				cmd.Printf("      %s\n", mutedStyle.Render(record.Description))
			}
		}
		cmd.Println()
	}
}

func newSignupCommand() *cobra.Command {
	var name, email, password, confirm string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a local account and sign in",
		Args:  cobra.NoArgs,
		RunE: withProfile(func(cmd *cobra.Command, _ []string, store *identity.Store) error {
			var (
				account identity.Account
				err     error
			)
			if cmd.Flags().Changed("confirm-password") {
				account, err = store.SignupConfirmed(name, email, password, confirm)
			} else {
				account, err = store.Signup(name, email, password)
			}
			if err != nil {
				return identityCommandError(err)
			}
			cmd.Printf("Signed up as %s <%s>\n", account.Name, account.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "repeat the password")
	return cmd
}

func newLoginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a registered local account",
		Args:  cobra.NoArgs,
		RunE: withProfile(func(cmd *cobra.Command, _ []string, store *identity.Store) error {
			account, err := store.Login(email, password)
			if err != nil {
				return identityCommandError(err)
			}
			cmd.Printf("Signed in as %s <%s>\n", account.Name, account.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the current session",
		Args:  cobra.NoArgs,
		RunE: withProfile(func(cmd *cobra.Command, _ []string, store *identity.Store) error {
			store.Logout()
			cmd.Println("Signed out.")
			return nil
		}),
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: withProfile(func(cmd *cobra.Command, _ []string, store *identity.Store) error {
			account, ok := store.CurrentUser()
			if !ok {
				cmd.Println("Not signed in.")
				return nil
			}
			cmd.Printf("%s <%s> (id %s)\n", account.Name, account.Email, account.ID)
			return nil
		}),
	}
}

func identityCommandError(err error) error {
	var validationErr *identity.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return errors.New(validationErr.Message)
	case errors.Is(err, identity.ErrInvalidCredentials):
		return errors.New(identity.MessageInvalidCredentials)
	default:
		return err
	}
}
