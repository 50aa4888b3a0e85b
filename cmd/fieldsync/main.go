package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"fieldsync/internal/app"
	"fieldsync/internal/config"
	"fieldsync/internal/fieldsync"
	"fieldsync/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates a FieldApp. The caller must defer a.Close().
func newApp() (*app.FieldApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var logOut io.Writer
	if verbose {
		logOut = os.Stderr
	}
	a, err := app.NewFieldApp(cfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// report prints an outcome and turns a failure into a command error.
func report(o fieldsync.Outcome) error {
	fmt.Println(o.Message())
	for _, w := range o.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}
	if o.Status == fieldsync.OutcomeFailed {
		return fmt.Errorf("operation failed")
	}
	return nil
}

// readPassphrase reads FIELDSYNC_PASSPHRASE or prompts on the terminal.
func readPassphrase(confirm bool) (string, error) {
	if p := os.Getenv("FIELDSYNC_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt: set FIELDSYNC_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(again) != string(p) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(p), nil
}

func printRecord(r model.InspectionRecord) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func printRecordLine(marker string, cursor int, r model.InspectionRecord) {
	fmt.Printf("%s%3d  %-32s  %s  %-4s  %d photo(s)  %s\n",
		marker, cursor, r.ID, r.InspectionDate, r.FacilityStatus, len(r.Photos), r.Remarks)
}

var rootCmd = &cobra.Command{
	Use:          "fieldsync",
	Short:        "Offline-first facility inspection records",
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"])
		cfg.Remote.URL, _ = cmd.Flags().GetString("url")

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		if cfg.Remote.URL == "" {
			fmt.Println("Set remote.url before syncing.")
		}
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
		fmt.Printf("Device ID:    %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Store:        %s %s\n", cfg.Store.Type, cfg.Store.DataDir)
		fmt.Printf("Remote:       %s %s (timeout %s)\n", cfg.Remote.Type, cfg.Remote.URL, cfg.Remote.Timeout())
		fmt.Printf("Connectivity: %s\n", cfg.Connectivity.Mode)
		return nil
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List inspection locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		locations, o := a.Locations(cmd.Context())
		for _, loc := range locations {
			fmt.Println(loc)
		}
		if len(locations) == 0 {
			fmt.Println("No locations known.")
		}
		if o.Status == fieldsync.OutcomeOffline {
			fmt.Fprintln(os.Stderr, "offline: showing cached list")
			return nil
		}
		if o.Status == fieldsync.OutcomeFailed {
			return report(o)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show LOCATION",
	Short: "Show the records of a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cursor, _ := cmd.Flags().GetInt("cursor")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		v, o := a.Show(cmd.Context(), args[0], cursor)
		if o.Status == fieldsync.OutcomeFailed {
			fmt.Fprintf(os.Stderr, "refresh failed, showing cached records: %v\n", o.Err)
		}

		if asJSON {
			return printRecord(v.Current)
		}

		current := v.Cursor()
		for i, r := range v.Records {
			marker := "  "
			if i == current {
				marker = "> "
			}
			printRecordLine(marker, i, r)
		}
		if v.Selection.IsNew() {
			fmt.Printf(">%4d  (new record %s)\n", current, v.Current.ID)
		}
		if v.PendingCount > 0 {
			fmt.Printf("\n%d record(s) pending\n", v.PendingCount)
		}
		return nil
	},
}

var newCmd = &cobra.Command{
	Use:   "new LOCATION",
	Short: "Print a new record draft for a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		draft, _ := a.NewDraft(cmd.Context(), args[0])
		return printRecord(draft)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save LOCATION FILE",
	Short: "Save a record read from a JSON file (- for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[1] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("reading record: %w", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return report(a.SaveJSON(cmd.Context(), args[0], data))
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync LOCATION",
	Short: "Send pending records and refresh a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return report(a.Sync(cmd.Context(), args[0]))
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect and hand off the pending queue",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records waiting to be sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		queue, err := a.Pending()
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			fmt.Println("No pending records.")
			return nil
		}
		for i, r := range queue {
			fmt.Printf("%3d  %-16s  %s\n", i, r.SheetName, r.ID)
		}
		return nil
	},
}

var pendingExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write the pending queue to an encrypted file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase(true)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}

		n, err := a.ExportPending(f, passphrase)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing export file: %w", cerr)
		}
		if err != nil {
			os.Remove(args[0])
			return err
		}

		fmt.Printf("Exported %d record(s) to %s\n", n, args[0])
		return nil
	},
}

var pendingImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Queue records from a file exported on another device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase(false)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening import file: %w", err)
		}
		defer f.Close()

		n, err := a.ImportPending(f, passphrase)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d record(s)\n", n)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the local store path and schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, schema, err := a.StoreInfo()
		if err != nil {
			return err
		}
		fmt.Printf("-- %s\n\n%s", path, schema)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-6s  %-12s  %s  %-13s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.Location,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Message,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also write log lines to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("url", "", "Remote sheet service URL")

	// pending subcommands
	pendingCmd.AddCommand(pendingListCmd)
	pendingCmd.AddCommand(pendingExportCmd)
	pendingCmd.AddCommand(pendingImportCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntP("cursor", "c", -1, "Record cursor (default: latest)")
	showCmd.Flags().Bool("json", false, "Print the selected record as JSON")
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
