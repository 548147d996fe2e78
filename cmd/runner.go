package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// When Config is nil each command loads it from its --config flag.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, rollbackCommand, reapCommand, adminsCommand, requestsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config, or reads path when it exists and
// falls back to defaults otherwise. Environment overrides apply either way.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	var config *shared.Config
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
		config = shared.DefaultConfig()
		if err := shared.ApplyEnv(config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	shared.ApplyLogLevel(r.logger, config.Log.Level)
	return config, nil
}

// openDatabase opens the configured database and brings its schema up to date.
func (r *Runner) openDatabase(config *shared.Config) (*shared.Database, error) {
	db, err := shared.OpenFromConfig(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
