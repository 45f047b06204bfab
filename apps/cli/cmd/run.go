package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/config"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/env"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/loader"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
	"github.com/abdul-hamid-achik/hitsuite/packages/logger"
	"github.com/abdul-hamid-achik/hitsuite/packages/notify"
	"github.com/abdul-hamid-achik/hitsuite/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run suite files",
	Long: `Run the specs defined in .suite.yaml files.

Examples:
  hitsuite run ./suites/
  hitsuite run api.suite.yaml --order declared
  hitsuite run ./suites/ --seed 42
  hitsuite run ./suites/ --tags smoke,!slow --filter "users*"
  hitsuite run ./suites/ --partition 1/4 --output junit --output-file report.xml
  hitsuite run ./suites/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// VariableEnvPrefix marks environment variables that become suite
	// variables, e.g. HITSUITE_VAR_base for {{base}}.
	VariableEnvPrefix = "HITSUITE_VAR_"
)

var (
	configFlag     string
	envFileFlag    string
	orderFlag      string
	seedFlag       uint64
	filterFlag     string
	grepFlag       string
	tagsFlag       string
	partitionFlag  string
	bailFlag       bool
	rateFlag       float64
	timeoutFlag    string
	retriesFlag    int
	retryDelayFlag string
	verboseFlag    bool
	noColorFlag    bool
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
	slowestFlag    int
	logLevelFlag   string
	logFileFlag    string

	// Snapshot testing flags
	updateSnapshotsFlag bool

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Selection flags
	runCmd.Flags().StringVar(&orderFlag, "order", getEnvString("HITSUITE_ORDER", ""), "Spec order: random, declared, alpha (env: HITSUITE_ORDER)")
	runCmd.Flags().Uint64Var(&seedFlag, "seed", getEnvUint("HITSUITE_SEED", 0), "Seed for random order, 0 picks one (env: HITSUITE_SEED)")
	runCmd.Flags().StringVarP(&filterFlag, "filter", "f", getEnvString("HITSUITE_FILTER", ""), "Run only specs whose description matches a substring or glob (env: HITSUITE_FILTER)")
	runCmd.Flags().StringVarP(&grepFlag, "grep", "g", getEnvString("HITSUITE_GREP", ""), "Run only specs whose description matches a regular expression (env: HITSUITE_GREP)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("HITSUITE_TAGS", ""), "Run only specs with these tags, !tag excludes (comma-separated) (env: HITSUITE_TAGS)")
	runCmd.Flags().StringVar(&partitionFlag, "partition", getEnvString("HITSUITE_PARTITION", ""), "Run the i-th of n slices, e.g. 1/4 (env: HITSUITE_PARTITION)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITSUITE_BAIL", false), "Stop on first failure (env: HITSUITE_BAIL)")
	runCmd.Flags().Float64VarP(&rateFlag, "rate", "r", getEnvFloat("HITSUITE_RATE", 0), "Maximum spec starts per second, 0 is unlimited (env: HITSUITE_RATE)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITSUITE_TIMEOUT", ""), "Default spec timeout (e.g., 30s, 1m) (env: HITSUITE_TIMEOUT)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", getEnvInt("HITSUITE_RETRIES", 0), "Default retries for failing specs (env: HITSUITE_RETRIES)")
	runCmd.Flags().StringVar(&retryDelayFlag, "retry-delay", getEnvString("HITSUITE_RETRY_DELAY", ""), "Delay between retries (env: HITSUITE_RETRY_DELAY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run specs")
	runCmd.Flags().BoolVar(&updateSnapshotsFlag, "update-snapshots", false, "Update snapshot files instead of comparing")

	// Variables
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("HITSUITE_CONFIG", ""), "Path to config file (env: HITSUITE_CONFIG)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITSUITE_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITSUITE_ENV_FILE)")

	// Output flags
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("HITSUITE_VERBOSE", false), "Verbose output (env: HITSUITE_VERBOSE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITSUITE_NO_COLOR", false), "Disable colored output (env: HITSUITE_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITSUITE_OUTPUT", "console"), "Output format: console, json, tap, junit, html (env: HITSUITE_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITSUITE_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITSUITE_OUTPUT_FILE)")
	runCmd.Flags().IntVar(&slowestFlag, "slowest", getEnvInt("HITSUITE_SLOWEST", runner.DefaultSlowest), "Number of slowest specs to report (env: HITSUITE_SLOWEST)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", getEnvString("HITSUITE_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: HITSUITE_LOG_LEVEL)")
	runCmd.Flags().StringVar(&logFileFlag, "log-file", getEnvString("HITSUITE_LOG_FILE", ""), "Also write logs to a rotated file (env: HITSUITE_LOG_FILE)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("HITSUITE_NOTIFY", ""), "Notification service: slack, teams (env: HITSUITE_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("HITSUITE_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: HITSUITE_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvUint(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatHeader(version string)
	FormatMessage(msg suite.Message)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// settings is the merged view of the config file and the flags.
type settings struct {
	config     *config.Config
	timeout    time.Duration
	retryDelay time.Duration
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}

	flags := cmd.Flags()
	overrides := &config.Config{
		Order:   orderFlag,
		Seed:    seedFlag,
		Rate:    rateFlag,
		Retries: retriesFlag,
		EnvFile: envFileFlag,
		Tags:    splitList(tagsFlag),
	}
	if flags.Changed("bail") || bailFlag {
		overrides.Bail = config.BoolPtr(bailFlag)
	}
	if flags.Changed("verbose") || verboseFlag {
		overrides.Verbose = config.BoolPtr(verboseFlag)
	}
	if flags.Changed("no-color") || noColorFlag {
		overrides.NoColor = config.BoolPtr(noColorFlag)
	}
	if logLevelFlag != "" || logFileFlag != "" {
		overrides.Log = &config.LogConfig{Level: logLevelFlag, File: logFileFlag}
	}

	s := &settings{config: fileConfig.Merge(overrides)}
	if err := s.config.Validate(); err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}

	s.timeout = time.Duration(s.config.Timeout) * time.Millisecond
	if timeoutFlag != "" {
		if s.timeout, err = time.ParseDuration(timeoutFlag); err != nil {
			return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)}
		}
	}
	s.retryDelay = time.Duration(s.config.RetryDelay) * time.Millisecond
	if retryDelayFlag != "" {
		if s.retryDelay, err = time.ParseDuration(retryDelayFlag); err != nil {
			return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("invalid retry delay %q: %w", retryDelayFlag, err)}
		}
	}
	return s, nil
}

func (s *settings) logger() *zap.Logger {
	cfg := logger.DefaultConfig()
	if s.config.Log != nil {
		if s.config.Log.Level != "" {
			cfg.Level = s.config.Log.Level
		}
		if s.config.Log.Format != "" {
			cfg.Format = s.config.Log.Format
		}
		cfg.FilePath = s.config.Log.File
	}
	if s.config.GetVerbose() && (cfg.Level == "warn" || cfg.Level == "error") {
		cfg.Level = "info"
	}
	return logger.New(cfg)
}

func (s *settings) runnerConfig() *runner.Config {
	return &runner.Config{
		Order:     s.config.Order,
		Seed:      s.config.Seed,
		Filter:    filterFlag,
		Grep:      grepFlag,
		Tags:      s.config.Tags,
		Partition: partitionFlag,
		Bail:      s.config.GetBail(),
		Rate:      s.config.Rate,
		Verbose:   s.config.GetVerbose(),
		Slowest:   slowestFlag,
	}
}

func (s *settings) loader(r *runner.Runner, log *zap.Logger) *loader.Loader {
	resolver := env.NewResolver()
	resolver.SetWarnFunc(log.Sugar().Warnf)
	resolver.SetVariables(env.MergeVariables(s.config.Variables, env.LoadSystemEnv(VariableEnvPrefix)))

	return loader.New(
		loader.WithResolver(resolver),
		loader.WithListeners(r.Listeners()),
		loader.WithLogger(log),
		loader.WithTimeout(s.timeout),
		loader.WithRetries(s.config.Retries, s.retryDelay),
		loader.WithEnvFile(s.config.EnvFile),
		loader.WithVerbose(s.config.GetVerbose()),
		loader.WithUpdateSnapshots(updateSnapshotsFlag),
	)
}

// notifications builds the manager for --notify, or nil when unset.
func notifications() (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range splitList(notifyFlag) {
		switch strings.ToLower(service) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			slackOpts := []notify.SlackOption{}
			if slackChannelFlag != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, slackOpts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		default:
			return nil, fmt.Errorf("unknown notification service %q (use slack or teams)", service)
		}
	}
	return notify.NewManager(on, notifiers...), nil
}

// newFormatter builds the named formatter writing to w. A nil w means stdout.
func newFormatter(name string, w io.Writer, s *settings) (Formatter, error) {
	switch strings.ToLower(name) {
	case "json":
		opts := []output.JSONOption{}
		if w != nil {
			opts = append(opts, output.JSONWithWriter(w))
		}
		return output.NewJSONFormatter(opts...), nil
	case "junit":
		opts := []output.JUnitOption{}
		if w != nil {
			opts = append(opts, output.JUnitWithWriter(w))
		}
		return output.NewJUnitFormatter(opts...), nil
	case "tap":
		opts := []output.TAPOption{}
		if w != nil {
			opts = append(opts, output.TAPWithWriter(w))
		}
		return output.NewTAPFormatter(opts...), nil
	case "html":
		opts := []output.HTMLOption{}
		if w != nil {
			opts = append(opts, output.HTMLWithWriter(w))
		}
		return output.NewHTMLFormatter(opts...), nil
	case "", "console":
		consoleOpts := []output.ConsoleOption{
			output.WithVerbose(s.config.GetVerbose()),
			output.WithNoColor(s.config.GetNoColor() || w != nil),
		}
		if w != nil {
			consoleOpts = append(consoleOpts, output.WithWriter(w))
		}
		return output.NewConsoleFormatter(consoleOpts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use console, json, tap, junit or html)", name)
	}
}

var reportExtensions = map[string]string{
	"console": ".txt",
	"json":    ".ndjson",
	"tap":     ".tap",
	"junit":   ".xml",
	"html":    ".html",
}

// openFormatters builds the primary formatter from --output and one file
// formatter per configured reporter. The returned closer closes every file.
func openFormatters(s *settings) (formatterSet, func(), error) {
	var (
		set   formatterSet
		files []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	var primary io.Writer
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return nil, closeAll, fmt.Errorf("cannot create output file: %w", err)
		}
		files = append(files, f)
		primary = f
	}
	fm, err := newFormatter(outputFlag, primary, s)
	if err != nil {
		return nil, closeAll, &exitError{code: ExitUsageError, err: err}
	}
	set = append(set, fm)

	for _, name := range s.config.Reporters {
		ext, ok := reportExtensions[strings.ToLower(name)]
		if !ok {
			return nil, closeAll, &exitError{code: ExitConfigError, err: fmt.Errorf("unknown reporter %q", name)}
		}
		dir := s.config.OutputDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, closeAll, fmt.Errorf("cannot create output directory: %w", err)
		}
		f, err := os.Create(filepath.Join(dir, "hitsuite"+ext))
		if err != nil {
			return nil, closeAll, fmt.Errorf("cannot create report file: %w", err)
		}
		files = append(files, f)
		fm, err := newFormatter(name, f, s)
		if err != nil {
			return nil, closeAll, err
		}
		set = append(set, fm)
	}
	return set, closeAll, nil
}

// formatterSet fans every call out to each of its formatters.
type formatterSet []Formatter

func (fs formatterSet) FormatHeader(version string) {
	for _, f := range fs {
		f.FormatHeader(version)
	}
}

func (fs formatterSet) FormatMessage(msg suite.Message) {
	for _, f := range fs {
		f.FormatMessage(msg)
	}
}

func (fs formatterSet) FormatResult(result *runner.RunResult) {
	for _, f := range fs {
		f.FormatResult(result)
	}
}

func (fs formatterSet) FormatError(err error) {
	for _, f := range fs {
		f.FormatError(err)
	}
}

func (fs formatterSet) Flush(totalDuration time.Duration) error {
	var errs []error
	for _, f := range fs {
		if flushable, ok := f.(Flushable); ok {
			errs = append(errs, flushable.Flush(totalDuration))
		}
	}
	return errors.Join(errs...)
}

func runCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := s.logger()
	defer func() { _ = log.Sync() }()
	log.Debug("configuration loaded",
		zap.Bool("defaults", s.config.IsDefault()),
		zap.String("order", s.config.Order),
		zap.Duration("timeout", s.timeout),
		zap.Int("retries", s.config.Retries),
	)

	notifier, err := notifications()
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	r := runner.NewRunner(s.runnerConfig(), runner.WithLogger(log))
	ld := s.loader(r, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// runOnce rebuilds the tree from disk so that watch mode picks up edits.
	runOnce := func() (*runner.RunResult, error) {
		formatters, closeAll, err := openFormatters(s)
		defer closeAll()
		if err != nil {
			return nil, err
		}
		formatters.FormatHeader(version)

		files, err := loader.Discover(args)
		if err != nil {
			formatters.FormatError(err)
			return nil, &exitError{code: ExitUsageError, err: err}
		}
		if len(files) == 0 {
			err := fmt.Errorf("no .suite.yaml files found")
			formatters.FormatError(err)
			return nil, &exitError{code: ExitUsageError, err: err}
		}

		root, err := ld.LoadFiles(files)
		if err != nil {
			formatters.FormatError(err)
			return nil, &exitError{code: ExitParseError, err: err}
		}

		result, err := r.Run(ctx, root, formatters.FormatMessage)
		if result == nil {
			formatters.FormatError(err)
			return nil, &exitError{code: ExitUsageError, err: err}
		}
		formatters.FormatResult(result)
		if notifier != nil {
			// The run context may be cancelled; notifications still go out.
			if nerr := notifier.Notify(context.WithoutCancel(ctx), notify.Summarize(result)); nerr != nil {
				log.Warn("failed to send notification", zap.Error(nerr))
			}
		}
		if flushErr := formatters.Flush(result.Duration); flushErr != nil {
			return result, fmt.Errorf("error writing output: %w", flushErr)
		}
		return result, err
	}

	result, err := runOnce()
	if !watchFlag {
		if err != nil {
			return err
		}
		if !result.Passed() {
			return &exitError{code: ExitTestFailure, silent: true}
		}
		return nil
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	return watch(ctx, cmd, args, log, runOnce)
}

// watch re-runs the suites whenever a suite file under args is written.
func watch(ctx context.Context, cmd *cobra.Command, args []string, log *zap.Logger, runOnce func() (*runner.RunResult, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(args) {
		if err := watcher.Add(dir); err != nil {
			log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce: the timer signals rerun once writes settle.
	var debounceTimer *time.Timer
	rerun := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !loader.IsSuiteFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running specs...\n\n", name)
			if _, err := runOnce(); err != nil && ctx.Err() == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

// watchDirs lists every directory to watch: the parents of named files and
// every directory below named directories, skipping hidden ones.
func watchDirs(args []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if path != arg && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
	}
	return dirs
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
