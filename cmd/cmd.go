// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("PLAYVOTE_CONFIG"),
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "playlist",
		Aliases:  []string{"p"},
		Usage:    "Spotify playlist ID",
		Required: true,
	}
}

// serveCommand runs the HTTP API and the reaper.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file if missing and run database migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

func rollbackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "rollback",
		Usage:  "Roll back the most recent database migration",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Rollback,
	}
}

func reapCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "reap",
		Usage:  "Delete resolved requests whose grace period has elapsed",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Reap,
	}
}

// adminsCommand manages playlist administrators without going through Spotify.
func adminsCommand(r *Runner) *cli.Command {
	ownerFlag := &cli.StringFlag{
		Name:  "owner",
		Usage: "Playlist owner's user ID, never stored as an administrator",
	}
	return &cli.Command{
		Name:  "admins",
		Usage: "Manage playlist administrators",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List administrators of a playlist",
				Flags:  []cli.Flag{configFlag(), playlistFlag(), &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.AdminsList,
			},
			{
				Name:      "add",
				Usage:     "Grant administrator to users",
				ArgsUsage: "<user-id>...",
				Flags:     []cli.Flag{configFlag(), playlistFlag(), ownerFlag},
				Action:    r.AdminsAdd,
			},
			{
				Name:      "remove",
				Usage:     "Revoke administrator from users",
				ArgsUsage: "<user-id>...",
				Flags:     []cli.Flag{configFlag(), playlistFlag(), ownerFlag},
				Action:    r.AdminsRemove,
			},
		},
	}
}

// requestsCommand inspects song requests.
func requestsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "requests",
		Usage: "Inspect song requests",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List requests of a playlist with vote counts",
				Flags: []cli.Flag{
					configFlag(),
					playlistFlag(),
					&cli.BoolFlag{Name: "all", Usage: "Include resolved requests"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
				},
				Action: r.RequestsList,
			},
		},
	}
}
