package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"drive-go/internal/app"
	"drive-go/internal/config"
	"drive-go/internal/drive"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", drive.ErrorKind(err), err)
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a DriveApp. The caller must defer app.Close().
func newApp(cmd *cobra.Command) (*app.DriveApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewDriveApp(cfg, verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// actorApp creates the app and resolves the --as user.
func actorApp(cmd *cobra.Command) (*app.DriveApp, string, error) {
	as, _ := cmd.Flags().GetString("as")
	if as == "" {
		return nil, "", fmt.Errorf("no acting user: pass --as or set DRIVE_USER")
	}

	a, err := newApp(cmd)
	if err != nil {
		return nil, "", err
	}
	u, err := a.ResolveUser(as)
	if err != nil {
		a.Close()
		return nil, "", err
	}
	return a, u.ID, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printRecord(r *drive.FileRecord, share *drive.ShareContext) {
	kind := "-"
	if r.IsDir() {
		kind = "d"
	}
	shared := ""
	if share != nil {
		shared = fmt.Sprintf("  [%s from %s]", share.Permission, share.SharedByUsername)
	}
	fmt.Printf("%s  %-36s  %10s  %s  %s%s\n",
		kind,
		r.ID,
		formatSize(r.Size),
		r.UpdatedAt.Local().Format("2006-01-02 15:04"),
		r.Name,
		shared,
	)
}

var rootCmd = &cobra.Command{
	Use:           "drive",
	Short:         "Multi-user file storage with trash and sharing",
	SilenceUsage:  true,
	SilenceErrors: true,
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Storage Root: %s\n", cfg.StorageRoot)
		fmt.Println("Run `drive db migrate` to create the database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Storage Root: %s\n", cfg.StorageRoot)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Exclude:      %v\n", cfg.Filesystem.Exclude)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		st, err := app.MigrationStatus(cfg)
		if err != nil {
			return err
		}
		state := "up to date"
		switch {
		case st.Dirty:
			state = "dirty"
		case st.Current < st.Latest:
			state = "migration pending"
		}
		fmt.Printf("Version %d of %d (%s)\n", st.Current, st.Latest, state)
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := app.Schema()
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add USERNAME EMAIL",
	Short: "Register a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.AddUser(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added %s <%s> with id %s\n", u.Username, u.Email, u.ID)
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Upload(actor, args[0], folder)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%s, %s) as %s\n", rec.Name, formatSize(rec.Size), rec.ContentType, rec.ID)
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Service().CreateFolder(actor, parent, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created folder %s as %s\n", rec.Name, rec.ID)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your files and the files shared with you",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Service().EffectiveFiles(actor)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files.")
			return nil
		}
		for _, f := range files {
			printRecord(f.Record, f.Share)
		}
		return nil
	},
}

// trash commands
var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Move a file or folder to the trash, or leave a share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		action, err := a.Service().SoftDelete(actor, args[0])
		if err != nil {
			return err
		}
		switch action.Kind {
		case drive.DeleteUnshare:
			fmt.Printf("Removed %s from your shared files\n", action.Record.Name)
		default:
			fmt.Printf("Moved %s to the trash\n", action.Record.Name)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Restore an item from the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Service().Restore(actor, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s\n", rec.Name)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge ID",
	Short: "Permanently delete an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Purge(actor, args[0]); err != nil {
			return err
		}
		fmt.Println("Permanently deleted.")
		return nil
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "List the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Service().ListTrash(actor)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Trash is empty.")
			return nil
		}
		for _, r := range items {
			deleted := ""
			if r.DeletedAt != nil {
				deleted = r.DeletedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%-36s  %10s  deleted %s  %s\n", r.ID, formatSize(r.Size), deleted, r.Name)
		}
		return nil
	},
}

// share commands
var shareCmd = &cobra.Command{
	Use:   "share FOLDER_ID EMAIL",
	Short: "Share a folder with another user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("perm")
		perm, err := drive.ParsePermission(raw)
		if err != nil {
			return err
		}

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		grant, err := a.Service().ShareFolderByEmail(actor, args[0], args[1], perm)
		if err != nil {
			return err
		}
		fmt.Printf("Shared with %s (%s), share %s, link %s\n", args[1], grant.Permission, grant.ID, grant.ShareLink)
		return nil
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare SHARE_ID",
	Short: "Revoke a share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().RevokeShare(actor, args[0]); err != nil {
			return err
		}
		fmt.Println("Share revoked.")
		return nil
	},
}

var sharesCmd = &cobra.Command{
	Use:   "shares FOLDER_ID",
	Short: "List the shares of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		grants, err := a.Service().ListFolderShares(actor, args[0])
		if err != nil {
			return err
		}
		if len(grants) == 0 {
			fmt.Println("Not shared.")
			return nil
		}
		for _, g := range grants {
			protected := ""
			if g.PasswordHash != "" {
				protected = "  [password]"
			}
			fmt.Printf("%-36s  %-8s  %s%s\n", g.ID, g.Permission, g.RecipientID, protected)
		}
		return nil
	},
}

var permCmd = &cobra.Command{
	Use:   "perm SHARE_ID PERMISSION",
	Short: "Change the permission of a share",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		perm, err := drive.ParsePermission(args[1])
		if err != nil {
			return err
		}

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		grant, err := a.Service().UpdateSharePermission(actor, args[0], perm)
		if err != nil {
			return err
		}
		fmt.Printf("Share %s is now %s\n", grant.ID, grant.Permission)
		return nil
	},
}

// link commands
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage share links",
}

var linkProtectCmd = &cobra.Command{
	Use:   "protect SHARE_ID",
	Short: "Set a password and expiry on a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expire, _ := cmd.Flags().GetDuration("expire")
		noPassword, _ := cmd.Flags().GetBool("no-password")

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var password string
		if !noPassword {
			if password, err = readPassword("Link password: "); err != nil {
				return err
			}
		}
		var expireAt *time.Time
		if expire > 0 {
			t := time.Now().Add(expire)
			expireAt = &t
		}

		grant, err := a.Service().ProtectShareLink(actor, args[0], password, expireAt)
		if err != nil {
			return err
		}
		fmt.Printf("Link %s updated\n", grant.ShareLink)
		return nil
	},
}

var linkOpenCmd = &cobra.Command{
	Use:   "open LINK",
	Short: "Resolve a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		askPassword, _ := cmd.Flags().GetBool("password")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var password string
		if askPassword {
			if password, err = readPassword("Link password: "); err != nil {
				return err
			}
		}
		rec, grant, err := a.Service().OpenShareLink(args[0], password)
		if err != nil {
			return err
		}
		printRecord(rec, &drive.ShareContext{Permission: grant.Permission, SharedByUsername: grant.OwnerID})
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download ID",
	Short: "Download a file, or a folder as a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if out == "-" {
			return a.StreamTo(actor, args[0], os.Stdout)
		}
		written, err := a.Download(actor, args[0], out)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", written)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View your recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, actor, err := actorApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(actor, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No activity recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("#%d  %s  %-13s  %s\n",
				e.ID,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Action,
				e.Description,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("as", os.Getenv("DRIVE_USER"), "Acting user id or e-mail (default $DRIVE_USER)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log to stderr, including debug records")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbSchemaCmd)

	userCmd.AddCommand(userAddCmd)

	// link subcommands
	linkCmd.AddCommand(linkProtectCmd)
	linkProtectCmd.Flags().Duration("expire", 0, "Expire the link after this long (e.g. 72h)")
	linkProtectCmd.Flags().Bool("no-password", false, "Remove the link password")
	linkCmd.AddCommand(linkOpenCmd)
	linkOpenCmd.Flags().BoolP("password", "p", false, "Prompt for the link password")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringP("folder", "f", "", "Upload into this folder id")
	rootCmd.AddCommand(mkdirCmd)
	mkdirCmd.Flags().StringP("parent", "p", "", "Create inside this folder id")
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(shareCmd)
	shareCmd.Flags().String("perm", "VIEW", "Permission: VIEW, DOWNLOAD, EDIT or ALL")
	rootCmd.AddCommand(unshareCmd)
	rootCmd.AddCommand(sharesCmd)
	rootCmd.AddCommand(permCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("output", "o", "", "Output path, or - for stdout (default: the item's name)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
}
