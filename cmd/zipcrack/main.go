package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/internal/config"
	"github.com/lamim/zipcrack/internal/cracker"
	"github.com/lamim/zipcrack/internal/metrics"
	"github.com/lamim/zipcrack/internal/orchestrator"
	"github.com/lamim/zipcrack/internal/writer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errPasswordNotFound makes the process exit with status 2
var errPasswordNotFound = errors.New("password not found")

var (
	configPath    string
	envFile       string
	verbose       bool
	entryIDs      []int
	charsetName   string
	customCharset string
	minLength     int
	maxLength     int
	threads       int
	handleMode    string
	noPreload     bool
	noProgress    bool
	noResults     bool
	outputDir     string
	metricsAddr   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPasswordNotFound) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zipcrack",
		Short: "zipcrack - brute-force password recovery for encrypted archives",
		Long: `zipcrack recovers the password of encrypted ZIP (ZipCrypto, WinZip AES)
and 7z entries by enumerating every candidate over a character set and
checking the decrypted content against the stored CRC-32.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	crackCmd := &cobra.Command{
		Use:   "crack <archive>",
		Short: "Recover entry passwords by brute force",
		Long: `Attack the encrypted entries of an archive, shortest passwords first.
Without --entry every encrypted entry is attacked in order; entries already
cracked in this run are skipped. Exits with status 2 if a password was not found.`,
		Args: cobra.ExactArgs(1),
		RunE: runCrack,
	}

	crackCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to configuration file")
	crackCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	crackCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	crackCmd.Flags().IntSliceVarP(&entryIDs, "entry", "e", nil, "Entry index to attack (repeatable; default: all encrypted entries)")
	crackCmd.Flags().StringVarP(&charsetName, "charset", "c", "", "Charset preset (digits, lower, upper, alnum, complex) or custom")
	crackCmd.Flags().StringVar(&customCharset, "custom-charset", "", "Characters to use with --charset custom")
	crackCmd.Flags().IntVar(&minLength, "min", 0, "Minimum password length")
	crackCmd.Flags().IntVar(&maxLength, "max", 0, "Maximum password length")
	crackCmd.Flags().IntVarP(&threads, "threads", "t", 0, "Worker count (0 = one per logical CPU)")
	crackCmd.Flags().StringVar(&handleMode, "handle-mode", "", "Archive handle reuse: attempt or worker")
	crackCmd.Flags().BoolVar(&noPreload, "no-preload", false, "Read the archive from disk instead of memory")
	crackCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")
	crackCmd.Flags().BoolVar(&noResults, "no-results", false, "Do not write results.jsonl")
	crackCmd.Flags().StringVar(&outputDir, "output-dir", "", "Parent directory for session output")
	crackCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	listCmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the entries of an archive",
		Args:  cobra.ExactArgs(1),
		RunE:  listEntries,
	}

	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect the results of previous runs",
	}

	resultsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all session directories",
		RunE:  listSessions,
	}

	resultsInspectCmd := &cobra.Command{
		Use:   "inspect <session-dir>",
		Short: "Show the results of one session",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectSession,
	}

	resultsCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "output", "Parent directory for session output")
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsInspectCmd)

	rootCmd.AddCommand(crackCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(resultsCmd)

	return rootCmd
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("charset") {
		cfg.Search.Charset = charsetName
	}
	if flags.Changed("custom-charset") {
		cfg.Search.CustomCharset = customCharset
		if !flags.Changed("charset") {
			cfg.Search.Charset = "custom"
		}
	}
	if flags.Changed("min") {
		cfg.Search.MinLength = minLength
		if !flags.Changed("max") && cfg.Search.MaxLength < minLength {
			cfg.Search.MaxLength = minLength
		}
	}
	if flags.Changed("max") {
		cfg.Search.MaxLength = maxLength
	}
	if flags.Changed("threads") {
		cfg.Search.Threads = threads
	}
	if flags.Changed("handle-mode") {
		cfg.Search.HandleMode = handleMode
	}
	if noPreload {
		cfg.Search.Preload = config.BoolPtr(false)
	}
	if noProgress {
		cfg.Output.Progress = config.BoolPtr(false)
	}
	if noResults {
		cfg.Output.WriteResults = config.BoolPtr(false)
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.ListenAddr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateInputs(); err != nil {
		return fmt.Errorf("input validation failed: %w", err)
	}
	return nil
}

func runCrack(cmd *cobra.Command, args []string) error {
	archivePath := args[0]

	// Load environment variables from file if it exists
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	// Determine log level
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	bootstrap := writer.NewConsoleLogger(os.Stderr, logLevel)

	sessionMgr, err := writer.NewSessionManager(bootstrap, cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// Set up logger
	logger, logFile, err := writer.SetupLogger(sessionMgr, os.Stderr, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	}()
	sessionMgr.SetLogger(logger)

	logger.Info("zipcrack starting",
		"version", Version,
		"archive", archivePath,
		"session_dir", sessionMgr.GetSessionDir())
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := sessionMgr.BackupConfig(configPath); err != nil {
			logger.Warn("Failed to back up config", "error", err)
		}
	}

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(logger)
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	a, err := archive.Open(archivePath,
		archive.WithPreload(cfg.PreloadEnabled()),
		archive.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("could not read archive: %w", err)
	}
	defer a.Close()

	coordinator := cracker.New(cracker.Options{
		HandleMode: cracker.HandleMode(cfg.Search.HandleMode),
		Progress:   cfg.ProgressEnabled(),
	}, collector, logger)
	session := cracker.NewSession(coordinator, logger)

	var sink orchestrator.ResultSink
	if cfg.WriteResultsEnabled() {
		resultsWriter, err := writer.NewResultsWriter(sessionMgr, logger)
		if err != nil {
			return fmt.Errorf("failed to create results writer: %w", err)
		}
		defer func() {
			if err := resultsWriter.Close(); err != nil {
				logger.Error("failed to close results writer", "error", err)
			}
		}()
		sink = resultsWriter
	}

	orch, err := orchestrator.New(cfg, a, session, sink, logger)
	if err != nil {
		return err
	}

	runErr := orch.Run(ctx, entryIDs)
	printResults(os.Stdout, orch.Results())

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("Run interrupted", "session_dir", sessionMgr.GetSessionDir())
			return fmt.Errorf("interrupted")
		}
		return fmt.Errorf("cracking failed: %w", runErr)
	}

	stats := orch.GetStats()
	logger.Info("Run complete",
		"entries", stats.EntriesTried,
		"cracked", stats.CrackedCount,
		"exhausted", stats.ExhaustedCount,
		"attempts", stats.TotalAttempts,
		"duration", stats.TotalDuration,
		"session_dir", sessionMgr.GetSessionDir())

	if stats.ExhaustedCount > 0 {
		return errPasswordNotFound
	}
	return nil
}

// printResults writes one line per finished attack
func printResults(w io.Writer, results []*cracker.Result) {
	for _, r := range results {
		if r.Found {
			fmt.Fprintf(w, "[%d] %s: password found: %q (after %d attempts, %s)\n",
				r.Entry.ID, r.Entry.Name, r.Password, r.Attempts, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(w, "[%d] %s: password not found after %d attempts\n",
				r.Entry.ID, r.Entry.Name, r.Attempts)
		}
	}
}

// listEntries prints the entries of an archive
func listEntries(cmd *cobra.Command, args []string) error {
	a, err := archive.Open(args[0], archive.WithPreload(false))
	if err != nil {
		return fmt.Errorf("could not read archive: %w", err)
	}
	defer a.Close()

	entries := a.Entries()
	if len(entries) == 0 {
		fmt.Println("Archive is empty.")
		return nil
	}

	fmt.Printf("%s (%s, %d entries)\n\n", a.Path(), a.Format(), len(entries))
	fmt.Printf("%-6s %-40s %-12s %-10s %s\n", "INDEX", "NAME", "SIZE", "ENCRYPTED", "METHOD")
	fmt.Println(strings.Repeat("-", 80))

	for _, e := range entries {
		encrypted := "No"
		if e.Encrypted {
			encrypted = "Yes"
		}
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Printf("%-6d %-40s %-12d %-10s %s\n", e.ID, name, e.Size, encrypted, e.Method)
	}

	return nil
}

// listSessions lists all session directories with a summary of their results
func listSessions(cmd *cobra.Command, args []string) error {
	sessions, err := writer.ListSessions(outputDir)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No session directories found.")
		return nil
	}

	fmt.Println("Available sessions:")
	fmt.Println()
	fmt.Printf("%-35s %-10s %-10s %s\n", "SESSION", "ATTACKS", "CRACKED", "ATTEMPTS")
	fmt.Println(strings.Repeat("-", 80))

	for _, s := range sessions {
		fmt.Printf("%-35s %-10d %-10d %d\n", s.Name, s.Attacks, s.Cracked, s.Attempts)
	}

	return nil
}

// inspectSession displays the results recorded in one session
func inspectSession(cmd *cobra.Command, args []string) error {
	sessionName := args[0]

	// Validate session path to prevent path traversal
	sessionDir, err := writer.ResolveSessionDir(outputDir, sessionName)
	if err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}

	records, err := writer.ReadResults(filepath.Join(sessionDir, writer.ResultsFileName))
	if err != nil {
		return err
	}

	fmt.Printf("Results for: %s\n", sessionName)
	fmt.Println(strings.Repeat("=", 80))
	if len(records) == 0 {
		fmt.Println("No results recorded.")
		return nil
	}

	for _, r := range records {
		fmt.Printf("Archive:     %s\n", r.Archive)
		fmt.Printf("Entry:       [%d] %s\n", r.EntryID, r.EntryName)
		if r.Found {
			fmt.Printf("Password:    %q\n", r.Password)
		} else {
			fmt.Printf("Password:    not found\n")
		}
		fmt.Printf("Attempts:    %d\n", r.Attempts)
		fmt.Printf("Search:      charset=%s length=%d-%d threads=%d\n", r.Charset, r.MinLength, r.MaxLength, r.Threads)
		fmt.Printf("Duration:    %s\n", r.Duration)
		fmt.Printf("Finished At: %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}

	return nil
}
