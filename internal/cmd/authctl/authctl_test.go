package authctl

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func lookupEnv(key string) (string, bool) {
	return "", false
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"list"}, lookupEnv)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "ember-auth.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Command != "list" {
		t.Fatalf("expected list command, got %q", cfg.Command)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	env := func(key string) (string, bool) {
		if key == "EMBER_AUTH_DB_PATH" {
			return "env.db", true
		}
		return "", false
	}

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "flag.db", "-client", "cli", "token", "user-1"}, env)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "flag.db" {
		t.Fatalf("expected flag db path, got %q", cfg.DBPath)
	}
	if cfg.ClientID != "cli" {
		t.Fatalf("expected client id, got %q", cfg.ClientID)
	}
	if cfg.Command != "token" || len(cfg.CommandArgs) != 1 || cfg.CommandArgs[0] != "user-1" {
		t.Fatalf("unexpected command parse: %+v", cfg)
	}
}

func TestParseConfigEnvFallback(t *testing.T) {
	env := func(key string) (string, bool) {
		if key == "EMBER_AUTH_DB_PATH" {
			return "env.db", true
		}
		return "", false
	}

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"list"}, env)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "env.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
}

func TestParseConfigRequiresCommand(t *testing.T) {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil, lookupEnv); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestRunCreateSystemAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	var out bytes.Buffer
	err := Run(ctx, Config{DBPath: dbPath, Command: "create-system", CommandArgs: []string{"Bridge"}}, &out, nil)
	if err != nil {
		t.Fatalf("create-system: %v", err)
	}
	if !strings.HasPrefix(out.String(), "created system user ") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	if err := Run(ctx, Config{DBPath: dbPath, Command: "list"}, &out, nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "Bridge") || !strings.Contains(out.String(), "system") {
		t.Fatalf("expected listed system user, got %q", out.String())
	}
}

func TestRunTokenForSystemUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	var out bytes.Buffer
	if err := Run(ctx, Config{DBPath: dbPath, Command: "create-system", CommandArgs: []string{"Bridge"}}, &out, nil); err != nil {
		t.Fatalf("create-system: %v", err)
	}
	userID := strings.TrimSpace(strings.TrimPrefix(out.String(), "created system user "))

	out.Reset()
	if err := Run(ctx, Config{DBPath: dbPath, Command: "token", CommandArgs: []string{userID}}, &out, nil); err != nil {
		t.Fatalf("token: %v", err)
	}
	token := strings.TrimSpace(out.String())
	if token == "" {
		t.Fatal("expected a token value")
	}

	out.Reset()
	err := Run(ctx, Config{DBPath: dbPath, ClientID: "cli", Command: "token", CommandArgs: []string{userID}}, &out, nil)
	if err == nil {
		t.Fatal("expected error issuing client-scoped token for system user")
	}
}

func TestRunRemoveUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	var out bytes.Buffer
	if err := Run(ctx, Config{DBPath: dbPath, Command: "create", CommandArgs: []string{"Paulus"}}, &out, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	userID := strings.TrimSpace(strings.TrimPrefix(out.String(), "created user "))

	out.Reset()
	if err := Run(ctx, Config{DBPath: dbPath, Command: "remove", CommandArgs: []string{userID}}, &out, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}

	out.Reset()
	if err := Run(ctx, Config{DBPath: dbPath, Command: "list"}, &out, nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out.String(), userID) {
		t.Fatalf("expected user removed, got %q", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	if err := Run(context.Background(), Config{DBPath: dbPath, Command: "bogus"}, nil, nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
