// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func userFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    usage,
		Required: true,
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

func matchArg() cli.Argument {
	return &cli.StringArg{Name: "match", UsageText: "Match ID"}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the bundled template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles provider account linking
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Link listening-history accounts",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize Spotify for a user using OAuth2",
				Flags:  []cli.Flag{userFlag("User to link")},
				Action: r.SpotifyAuth,
			},
			{
				Name:   "status",
				Usage:  "Show whether a user has a stored token",
				Flags:  []cli.Flag{userFlag("User to check")},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove a user's stored token",
				Flags:  []cli.Flag{userFlag("User to unlink")},
				Action: r.AuthLogout,
			},
		},
	}
}

func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "users",
		Aliases: []string{"user"},
		Usage:   "Manage users",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a user",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name", UsageText: "Display name"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "bio", Usage: "Short bio (50 characters max)"},
					&cli.StringFlag{Name: "photo", Usage: "Photo URL"},
					&cli.FloatFlag{Name: "lat", Usage: "Latitude"},
					&cli.FloatFlag{Name: "lng", Usage: "Longitude"},
				},
				Action: r.UsersAdd,
			},
			{
				Name:      "locate",
				Usage:     "Set a user's location",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user", UsageText: "User ID"}},
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "lat", Usage: "Latitude", Required: true},
					&cli.FloatFlag{Name: "lng", Usage: "Longitude", Required: true},
				},
				Action: r.UsersLocate,
			},
			{
				Name:  "list",
				Usage: "List users",
				Flags: append(outputFlags(),
					&cli.BoolFlag{Name: "eligible", Usage: "Only users that can be matched"},
				),
				Action: r.UsersList,
			},
			{
				Name:      "show",
				Usage:     "Show a user and their taste profile",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user", UsageText: "User ID"}},
				Flags:     outputFlags(),
				Action:    r.UsersShow,
			},
			{
				Name:      "export",
				Usage:     "Export a user's taste profile as Markdown and JSON",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user", UsageText: "User ID"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.BoolFlag{Name: "photo", Usage: "Download the profile photo"},
				},
				Action: r.UsersExport,
			},
		},
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Rebuild a user's taste profile from Spotify",
		Arguments: []cli.Argument{&cli.StringArg{Name: "user", UsageText: "User ID"}},
		Flags:     outputFlags(),
		Action:    r.Sync,
	}
}

func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Daily matching",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the matching batch once",
				Flags: append(outputFlags(),
					&cli.StringFlag{Name: "date", Usage: "Match date (YYYY-MM-DD), defaults to today"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent users (defaults to config)"},
				),
				Action: r.MatchRun,
			},
			{
				Name:      "today",
				Usage:     "Show a user's match for today",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user", UsageText: "User ID"}},
				Flags:     outputFlags(),
				Action:    r.MatchToday,
			},
			{
				Name:      "show",
				Usage:     "Show one match from a party's point of view",
				Arguments: []cli.Argument{matchArg()},
				Flags:     append(outputFlags(), userFlag("Viewing user")),
				Action:    r.MatchShow,
			},
			{
				Name:      "history",
				Usage:     "List a user's past matches",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user", UsageText: "User ID"}},
				Flags: append(outputFlags(),
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of matches", Value: 30},
					&cli.BoolFlag{Name: "csv", Usage: "Write history to a CSV file"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "CSV output path"},
				),
				Action: r.MatchHistory,
			},
			{
				Name:  "schedule",
				Usage: "Run the matching batch on the configured schedule until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "schedule", Usage: "Cron expression (defaults to config)"},
				},
				Action: r.MatchSchedule,
			},
		},
	}
}

func revealCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reveal",
		Usage: "Mutual identity reveal",
		Commands: []*cli.Command{
			{
				Name:      "request",
				Usage:     "Ask to reveal identities",
				Arguments: []cli.Argument{matchArg()},
				Flags:     []cli.Flag{userFlag("Requesting user")},
				Action:    r.RevealRequest,
			},
			{
				Name:      "accept",
				Usage:     "Accept the other party's reveal request",
				Arguments: []cli.Argument{matchArg()},
				Flags:     []cli.Flag{userFlag("Accepting user")},
				Action:    r.RevealAccept,
			},
		},
	}
}

func blockCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "block",
		Usage:     "Block the other party of a match",
		Arguments: []cli.Argument{matchArg()},
		Flags:     []cli.Flag{userFlag("Blocking user")},
		Action:    r.Block,
	}
}

func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Report the other party of a match",
		Arguments: []cli.Argument{matchArg()},
		Flags: []cli.Flag{
			userFlag("Reporting user"),
			&cli.StringFlag{Name: "reason", Usage: "Reason for the report"},
		},
		Action: r.Report,
	}
}

func messageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "message",
		Aliases: []string{"msg"},
		Usage:   "Chat inside a match",
		Commands: []*cli.Command{
			{
				Name:  "send",
				Usage: "Send a message",
				Arguments: []cli.Argument{
					matchArg(),
					&cli.StringArg{Name: "content", UsageText: "Message text"},
				},
				Flags:  []cli.Flag{userFlag("Sending user")},
				Action: r.MessageSend,
			},
			{
				Name:      "list",
				Usage:     "List messages and mark them read",
				Arguments: []cli.Argument{matchArg()},
				Flags: append(outputFlags(),
					userFlag("Reading user"),
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of messages", Value: 100},
				),
				Action: r.MessageList,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (defaults to config host:port)"},
			&cli.BoolFlag{Name: "schedule", Usage: "Also run the daily matching schedule"},
		},
		Action: r.Serve,
	}
}
