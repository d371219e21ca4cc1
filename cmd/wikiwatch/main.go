package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wikiwatch/internal/app"
	"wikiwatch/internal/config"
	"wikiwatch/internal/watch"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configPath returns the --config flag, falling back to the default location.
func configPath(cmd *cobra.Command) (string, app.Defaults, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", app.Defaults{}, fmt.Errorf("getting defaults: %w", err)
	}
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaults.ConfigPath
	}
	return path, defaults, nil
}

func readConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// withApp reads the config, creates a WatchApp for the operation and runs fn.
// A failing fn marks the journaled operation as failed before the app closes.
func withApp(cmd *cobra.Command, operation string, args []string, fn func(*app.WatchApp) error) (err error) {
	cfg, err := readConfig(cmd)
	if err != nil {
		return err
	}

	a, err := app.NewWatchApp(cmd.Context(), cfg, operation, args)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() {
		if err != nil {
			a.Operation().Fail()
		}
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(a)
}

var rootCmd = &cobra.Command{
	Use:          "wikiwatch",
	Short:        "Track Wikipedia articles and their new revisions",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, defaults, err := configPath(cmd)
		if err != nil {
			return err
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", path)
		fmt.Fprintf(out, "Base Dir: %s\n", cfg.BaseDir)
		fmt.Fprintln(out, "Run 'wikiwatch keys init' before enabling an archive.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _, err := configPath(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if cfg.Archive.S3Secret != "" {
			cfg.Archive.S3Secret = "********"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# Configuration from %s\n\n", path)
		m := &config.Manager{}
		return m.Write(out, cfg)
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		return withApp(cmd, "InitKeys", nil, func(a *app.WatchApp) error {
			if err := a.InitKeys(passphrase); err != nil {
				return fmt.Errorf("generating keys: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Snapshot keys generated.")
			return nil
		})
	},
}

// regions command
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List supported wiki regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([][]string, 0, len(watch.Regions()))
		for _, r := range watch.Regions() {
			rows = append(rows, []string{r.Code(), r.Name(), r.Host()})
		}
		return writeTable(cmd.OutOrStdout(), terminalWidth(), []string{"CODE", "NAME", "HOST"}, rows)
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Start tracking an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		region, _ := cmd.Flags().GetString("region")

		return withApp(cmd, "AddArticle", []string{args[0], region}, func(a *app.WatchApp) error {
			article, err := a.AddArticle(cmd.Context(), args[0], region)
			if err != nil {
				return fmt.Errorf("adding article: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s:%s (%d revisions, %d unseen)\n",
				article.Region.Code(), article.Name, article.CountTotal(), article.CountUnseen())
			return nil
		})
	},
}

// remove command
var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Stop tracking an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "RemoveArticle", args, func(a *app.WatchApp) error {
			article, err := a.RemoveArticle(args[0])
			if err != nil {
				return fmt.Errorf("removing article: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s:%s\n", article.Region.Code(), article.Name)
			return nil
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		regionFlag, _ := cmd.Flags().GetString("region")
		unseen, _ := cmd.Flags().GetBool("unseen")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		filter := watch.ArticleFilter{UnseenOnly: unseen}
		if regionFlag != "" {
			r, err := watch.ParseRegion(regionFlag)
			if err != nil {
				return err
			}
			filter.Region = &r
		}

		return withApp(cmd, "ListArticles", args, func(a *app.WatchApp) error {
			summaries, err := a.ListArticles(filter)
			if err != nil {
				return err
			}
			views := summaryViews(summaries)

			out := cmd.OutOrStdout()
			if format != formatTable {
				return encode(out, format, views)
			}
			if len(views) == 0 {
				fmt.Fprintln(out, "No articles tracked.")
				return nil
			}
			return writeArticleTable(out, terminalWidth(), views)
		})
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show an article and its revisions, refreshing when stale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		return withApp(cmd, "OpenArticle", args, func(a *app.WatchApp) error {
			article, err := a.OpenArticle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := newArticleView(article, true)

			out := cmd.OutOrStdout()
			if format != formatTable {
				return encode(out, format, view)
			}
			return writeArticleDetail(out, terminalWidth(), view)
		})
	},
}

// revision command
var revisionCmd = &cobra.Command{
	Use:   "revision NAME (INDEX | TIMESTAMP --user USER)",
	Short: "Show one revision and mark it seen",
	Long: `Show one revision and mark it seen.

The revision is either its 1-based position in 'wikiwatch show' (most recent
first) or its RFC3339 timestamp together with --user.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		return withApp(cmd, "ViewRevision", args, func(a *app.WatchApp) error {
			view, err := viewRevision(a, args[0], args[1], user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format != formatTable {
				return encode(out, format, view)
			}
			return writeRevisionDetail(out, view)
		})
	},
}

func viewRevision(a *app.WatchApp, ref, which, user string) (revisionView, error) {
	if index, err := strconv.Atoi(which); err == nil {
		_, r, err := a.ViewRevision(ref, index)
		if err != nil {
			return revisionView{}, err
		}
		return newRevisionView(index, r), nil
	}

	ts, err := time.Parse(time.RFC3339Nano, which)
	if err != nil {
		return revisionView{}, fmt.Errorf("revision must be an index or an RFC3339 timestamp: %q", which)
	}
	if user == "" {
		return revisionView{}, fmt.Errorf("--user is required when selecting a revision by timestamp")
	}
	article, err := a.MarkRevisionSeen(ref, user, ts, true)
	if err != nil {
		return revisionView{}, err
	}
	for i, r := range article.Chronological() {
		if r.User == user && r.Timestamp.Equal(ts) {
			return newRevisionView(i+1, r), nil
		}
	}
	return revisionView{}, fmt.Errorf("no revision by %s at %s", user, which)
}

// refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [NAME]",
	Short: "Fetch new revisions for one article, or all articles",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if len(args) == 0 {
			return withApp(cmd, "RefreshAll", args, func(a *app.WatchApp) error {
				added, err := a.RefreshAll(cmd.Context(), force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d new revision(s)\n", added)
				return nil
			})
		}

		return withApp(cmd, "RefreshArticle", args, func(a *app.WatchApp) error {
			article, err := a.RefreshArticle(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s: %d unseen of %d\n",
				article.Region.Code(), article.Name, article.CountUnseen(), article.CountTotal())
			return nil
		})
	},
}

// seen command
var seenCmd = &cobra.Command{
	Use:   "seen NAME",
	Short: "Mark every revision of an article as seen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unset, _ := cmd.Flags().GetBool("unset")

		return withApp(cmd, "MarkAllSeen", args, func(a *app.WatchApp) error {
			article, err := a.MarkAllSeen(args[0], !unset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s: %d unseen of %d\n",
				article.Region.Code(), article.Name, article.CountUnseen(), article.CountTotal())
			return nil
		})
	},
}

// notes command
var notesCmd = &cobra.Command{
	Use:   "notes NAME TEXT...",
	Short: "Replace the notes of an article",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes := strings.Join(args[1:], " ")

		return withApp(cmd, "SetNotes", args, func(a *app.WatchApp) error {
			if _, err := a.SetNotes(args[0], notes); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Notes saved.")
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, "GetHistory", args, func(a *app.WatchApp) error {
			ops, err := a.GetHistory(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ops) == 0 {
				fmt.Fprintln(out, "No operations recorded.")
				return nil
			}

			for _, op := range ops {
				duration := ""
				if op.FinishedAt.Valid {
					d := op.FinishedAt.Time.Sub(op.StartedAt)
					duration = d.Truncate(time.Millisecond).String()
				}
				fmt.Fprintf(out, "#%d  %-15s  %s  %-8s  %-8s  %s\n",
					op.ID,
					op.Operation,
					op.StartedAt.Local().Format("2006-01-02 15:04:05"),
					op.Status,
					duration,
					op.Parameters,
				)
			}
			return nil
		})
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive or restore database snapshots",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload a snapshot of the database now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "PushSnapshot", args, func(a *app.WatchApp) error {
			version, err := a.PushSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %d uploaded.\n", version)
			return nil
		})
	},
}

var snapshotCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the archive is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "CheckArchive", args, func(a *app.WatchApp) error {
			version, err := a.CheckArchive(cmd.Context())
			if err != nil {
				return err
			}
			local, err := a.LocalVersion()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Archive OK. Latest snapshot: %d, local journal: %d\n", version, local)
			if version > local {
				fmt.Fprintln(out, "The archive is ahead of this database; run 'wikiwatch snapshot restore'.")
			}
			return nil
		})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore PATH",
	Short: "Download the latest snapshot into a new database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(cmd)
		if err != nil {
			return err
		}
		passphrase := ""
		if cfg.Encryption.Type != "none" {
			if passphrase, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		return withApp(cmd, "RestoreSnapshot", args, func(a *app.WatchApp) error {
			if err := a.RestoreSnapshot(cmd.Context(), args[0], passphrase); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot restored to %s\n", args[0])
			fmt.Fprintln(out, "Point database.data_dir at it (as wikiwatch.db) to use it.")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default $"+app.EnvConfigPath+" or ~/.config/wikiwatch.toml)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotCheckCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringP("region", "r", "en", "Wiki region code or name")
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("region", "", "Only articles on this region")
	listCmd.Flags().Bool("unseen", false, "Only articles with unseen revisions")
	listCmd.Flags().StringP("format", "f", formatTable, "Output format: table, yaml or json")
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringP("format", "f", formatTable, "Output format: table, yaml or json")
	rootCmd.AddCommand(revisionCmd)
	revisionCmd.Flags().StringP("user", "u", "", "Author of the revision (with a timestamp)")
	revisionCmd.Flags().StringP("format", "f", formatTable, "Output format: table, yaml or json")
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().Bool("force", false, "Refresh even when not stale")
	rootCmd.AddCommand(seenCmd)
	seenCmd.Flags().Bool("unset", false, "Mark revisions as unseen instead")
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(snapshotCmd)
}
