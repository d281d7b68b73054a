// Package authctl implements offline administration of the auth store:
// listing users, creating system users, removing users, and issuing
// refresh tokens, directly against the SQLite database.
package authctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/emberhome/ember/internal/auth/manager"
	"github.com/emberhome/ember/internal/auth/storage/sqlite"
	"github.com/emberhome/ember/internal/auth/store"
	"github.com/emberhome/ember/internal/platform/config"
)

// Config holds authctl command configuration.
type Config struct {
	DBPath   string
	ClientID string

	Command     string
	CommandArgs []string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config. The first positional argument is
// the subcommand.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		DBPath: envOrDefault(lookup, []string{"EMBER_AUTH_DB_PATH"}, "ember-auth.db"),
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the auth SQLite database")
	fs.StringVar(&cfg.ClientID, "client", "", "client id for token issuance (omit for system users)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, fmt.Errorf("a command is required: list, create, create-system, remove, token")
	}
	cfg.Command = rest[0]
	cfg.CommandArgs = rest[1:]
	return cfg, nil
}

// Run executes the authctl command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	var storeCfg store.Config
	if err := config.ParseEnv(&storeCfg); err != nil {
		return err
	}

	backend, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	st := store.New(backend, storeCfg)
	m := manager.New(st, nil, nil)

	runErr := runCommand(ctx, cfg, m, out)
	if closeErr := st.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func runCommand(ctx context.Context, cfg Config, m *manager.Manager, out io.Writer) error {
	switch cfg.Command {
	case "list":
		return listUsers(ctx, m, out)

	case "create":
		name := strings.TrimSpace(strings.Join(cfg.CommandArgs, " "))
		if name == "" {
			return errors.New("a user name is required")
		}
		u, err := m.CreateUser(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created user %s\n", u.ID)
		return nil

	case "create-system":
		name := strings.TrimSpace(strings.Join(cfg.CommandArgs, " "))
		if name == "" {
			return errors.New("a user name is required")
		}
		u, err := m.CreateSystemUser(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created system user %s\n", u.ID)
		return nil

	case "remove":
		if len(cfg.CommandArgs) != 1 {
			return errors.New("a user id is required")
		}
		u, err := m.User(ctx, cfg.CommandArgs[0])
		if err != nil {
			return err
		}
		if err := m.RemoveUser(ctx, u); err != nil {
			return err
		}
		fmt.Fprintf(out, "removed user %s\n", u.ID)
		return nil

	case "token":
		if len(cfg.CommandArgs) != 1 {
			return errors.New("a user id is required")
		}
		u, err := m.User(ctx, cfg.CommandArgs[0])
		if err != nil {
			return err
		}
		rt, err := m.CreateRefreshToken(ctx, u, cfg.ClientID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", rt.Token)
		return nil

	default:
		return fmt.Errorf("unknown command %q: expected list, create, create-system, remove, or token", cfg.Command)
	}
}

func listUsers(ctx context.Context, m *manager.Manager, out io.Writer) error {
	users, err := m.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		var flags []string
		if u.IsOwner {
			flags = append(flags, "owner")
		}
		if u.IsActive {
			flags = append(flags, "active")
		}
		if u.SystemGenerated {
			flags = append(flags, "system")
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", u.ID, u.Name, strings.Join(flags, ","))
	}
	return nil
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
