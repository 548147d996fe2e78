package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/repositories"
	"github.com/desertthunder/playvote/internal/shared"
	tu "github.com/desertthunder/playvote/internal/testing"
	"github.com/urfave/cli/v3"
)

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.DSN = filepath.Join(t.TempDir(), "playvote.db")
	config.Requests.MaxAdministrators = 2
	return config
}

func newTestRunner(config *shared.Config) (*Runner, *bytes.Buffer) {
	output := &bytes.Buffer{}
	return NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Output: output,
	}), output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "playvote", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"playvote"}, args...))
}

func openTestDB(t *testing.T, config *shared.Config) *shared.Database {
	t.Helper()
	db, err := shared.OpenFromConfig(config.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: output})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner, _ := newTestRunner(nil)
		names := map[string]bool{}
		for _, c := range runner.register() {
			names[c.Name] = true
		}
		for _, want := range []string{"serve", "setup", "rollback", "reap", "admins", "requests"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("pretty", func(t *testing.T) {
			runner, output := newTestRunner(nil)
			if err := runner.writeJSON(map[string]int{"a": 1}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.String() != "{\n  \"a\": 1\n}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON("x", false); err == nil {
				t.Error("expected error")
			}
		})

		t.Run("newline failure", func(t *testing.T) {
			var buf bytes.Buffer
			w := tu.NewLimitedWriter(1, 0, &buf)
			runner := NewRunner(RunnerOpts{Output: &w})
			err := runner.writeJSON("x", false)
			if err == nil || !strings.Contains(err.Error(), "newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults", func(t *testing.T) {
			runner, _ := newTestRunner(nil)
			config, err := runner.loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Database.Driver != shared.DriverSQLite {
				t.Errorf("expected default driver, got %s", config.Database.Driver)
			}
		})

		t.Run("invalid file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[database]\ndriver = \"oracle\"\n"), 0644); err != nil {
				t.Fatal(err)
			}
			runner, _ := newTestRunner(nil)
			if _, err := runner.loadConfig(path); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestSetupAndRollback(t *testing.T) {
	t.Run("setup writes config and migrates", func(t *testing.T) {
		t.Chdir(t.TempDir())
		runner, _ := newTestRunner(nil)

		if err := run(runner, "setup", "--config", "config.toml"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if _, err := os.Stat("config.toml"); err != nil {
			t.Errorf("expected config.toml to be created: %v", err)
		}
		if _, err := os.Stat("playvote.db"); err != nil {
			t.Errorf("expected database file to be created: %v", err)
		}
	})

	t.Run("rollback reverts latest migration", func(t *testing.T) {
		config := testConfig(t)
		runner, _ := newTestRunner(config)

		if err := run(runner, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := run(runner, "rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}

		db, err := shared.OpenFromConfig(config.Database)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		applied, err := shared.AppliedVersions(db)
		if err != nil {
			t.Fatal(err)
		}
		if len(applied) != 0 {
			t.Errorf("expected no applied migrations, got %v", applied)
		}
	})
}

func TestAdminsCommands(t *testing.T) {
	config := testConfig(t)
	runner, output := newTestRunner(config)

	t.Run("add skips the owner", func(t *testing.T) {
		if err := run(runner, "admins", "add", "--playlist", "pl1", "--owner", "owner", "alice", "owner"); err != nil {
			t.Fatalf("admins add failed: %v", err)
		}
		if !strings.Contains(output.String(), "administrators: alice") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("limit is enforced", func(t *testing.T) {
		err := run(runner, "admins", "add", "--playlist", "pl1", "bob", "carol")
		if !shared.IsKind(err, shared.KindUnprocessable) {
			t.Errorf("expected unprocessable error, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "admins", "list", "--playlist", "pl1"); err != nil {
			t.Fatalf("admins list failed: %v", err)
		}
		if !strings.Contains(output.String(), "alice") || strings.Contains(output.String(), "bob") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("remove", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "admins", "remove", "--playlist", "pl1", "alice"); err != nil {
			t.Fatalf("admins remove failed: %v", err)
		}
		ok, err := repositories.NewAdministratorRepository(openTestDB(t, config)).IsAdmin(context.Background(), "pl1", "alice")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("expected alice to be removed")
		}
	})

	t.Run("requires user ids", func(t *testing.T) {
		err := run(runner, "admins", "add", "--playlist", "pl1")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestRequestsAndReap(t *testing.T) {
	ctx := context.Background()
	config := testConfig(t)
	runner, output := newTestRunner(config)

	db := openTestDB(t, config)
	repo := repositories.NewSongRequestRepository(db)
	votes := repositories.NewVoteRepository(db)
	now := time.Now().UTC()

	pending, _, err := repo.CreatePending(ctx, models.NewSongRequest("pl1", "4uLU6hMCjMI75M1A2tKUQC", models.RequestAdd, now))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := votes.Add(ctx, pending.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	expired, _, err := repo.CreatePending(ctx, models.NewSongRequest("pl1", "7GhIk7Il098yCjg4BQjzvb", models.RequestRemove, now))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Transition(ctx, expired.ID, models.StatusRejected, now.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}

	t.Run("requests list", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "requests", "list", "--playlist", "pl1", "--all"); err != nil {
			t.Fatalf("requests list failed: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, pending.ID) || !strings.Contains(out, "1 votes") {
			t.Errorf("expected pending request with its vote, got %q", out)
		}
		if !strings.Contains(out, expired.ID) || !strings.Contains(out, "rejected") {
			t.Errorf("expected resolved request, got %q", out)
		}
	})

	t.Run("requests list json", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "requests", "list", "--playlist", "pl1", "--json"); err != nil {
			t.Fatalf("requests list failed: %v", err)
		}
		if !strings.Contains(output.String(), `"pending"`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("reap", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "reap"); err != nil {
			t.Fatalf("reap failed: %v", err)
		}
		if !strings.Contains(output.String(), "reaped 1 requests") {
			t.Errorf("unexpected output %q", output.String())
		}
		if _, err := repo.Get(ctx, pending.ID); err != nil {
			t.Errorf("expected pending request to survive: %v", err)
		}
	})
}
