package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/export/metrics"
	"github.com/abdul-hamid-achik/contractkit/packages/history"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/output"
	"github.com/abdul-hamid-achik/contractkit/packages/stats"
	"github.com/abdul-hamid-achik/contractkit/packages/suite"
	"github.com/abdul-hamid-achik/contractkit/packages/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run <suite|directory>...",
	Short: "Run the scenarios of suite files",
	Long: `Run every scenario of the given suite files. Directories are searched
for *.suite.yaml and *.suite.yml files.

Examples:
  contractkit run posts.suite.yaml
  contractkit run ./contracts --env staging
  contractkit run ./contracts --parallel --concurrency 10 --rate 20
  contractkit run posts.suite.yaml --filter "admin*" -o junit --output-file report.xml
  contractkit run ./contracts --history .contractkit.db --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	schemasFlag     string
	openAPIFlag     string
	historyFlag     string
	outputFlag      string
	outputFileFlag  string
	filterFlag      string
	timeoutFlag     string
	proxyFlag       string
	parallelFlag    bool
	concurrencyFlag int
	rateFlag        float64
	bailFlag        bool
	verboseFlag     bool
	noColorFlag     bool
	progressFlag    bool
	insecureFlag    bool
	watchFlag       bool

	metricsFileFlag   string
	metricsFormatFlag string
)

func init() {
	// Output flags
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("CONTRACTKIT_OUTPUT", ""), "Output format: console, json, junit, tap (env: CONTRACTKIT_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("CONTRACTKIT_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: CONTRACTKIT_OUTPUT_FILE)")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("CONTRACTKIT_VERBOSE", false), "Show curl commands, latency and executor logs (env: CONTRACTKIT_VERBOSE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("CONTRACTKIT_NO_COLOR", false), "Disable colored output (env: CONTRACTKIT_NO_COLOR)")
	runCmd.Flags().BoolVar(&progressFlag, "progress", getEnvBool("CONTRACTKIT_PROGRESS", false), "Print a mark per finished row (console only) (env: CONTRACTKIT_PROGRESS)")

	// Execution flags
	runCmd.Flags().StringVarP(&filterFlag, "filter", "f", getEnvString("CONTRACTKIT_FILTER", ""), "Run only rows whose name matches the pattern (env: CONTRACTKIT_FILTER)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("CONTRACTKIT_PARALLEL", false), "Run the rows of a scenario in parallel (env: CONTRACTKIT_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("CONTRACTKIT_CONCURRENCY", 0), "Rows in flight per scenario when parallel (env: CONTRACTKIT_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("CONTRACTKIT_RATE", 0), "Row starts per second, 0 for unpaced (env: CONTRACTKIT_RATE)")
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("CONTRACTKIT_BAIL", false), "Stop after the first failed scenario (env: CONTRACTKIT_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("CONTRACTKIT_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: CONTRACTKIT_TIMEOUT)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch suite and data files and re-run on change")

	// Sources
	runCmd.Flags().StringVar(&schemasFlag, "schemas", getEnvString("CONTRACTKIT_SCHEMAS", ""), "Directory JSON schemas are loaded from (env: CONTRACTKIT_SCHEMAS)")
	runCmd.Flags().StringVar(&openAPIFlag, "openapi", getEnvString("CONTRACTKIT_OPENAPI", ""), "OpenAPI document whose component schemas can be referenced (env: CONTRACTKIT_OPENAPI)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("CONTRACTKIT_HISTORY", ""), "SQLite file to record runs in (env: CONTRACTKIT_HISTORY)")

	// Metrics flags
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("CONTRACTKIT_METRICS_FILE", ""), "Write run metrics to file (env: CONTRACTKIT_METRICS_FILE)")
	runCmd.Flags().StringVar(&metricsFormatFlag, "metrics-format", getEnvString("CONTRACTKIT_METRICS_FORMAT", "prometheus"), "Metrics format: prometheus, json (env: CONTRACTKIT_METRICS_FORMAT)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("CONTRACTKIT_PROXY", ""), "Proxy URL for HTTP requests (env: CONTRACTKIT_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("CONTRACTKIT_INSECURE", false), "Disable SSL certificate validation (env: CONTRACTKIT_INSECURE)")

	_ = runCmd.RegisterFlagCompletionFunc("output", completeWords(output.Formats))
	_ = runCmd.RegisterFlagCompletionFunc("metrics-format", completeWords(metrics.Formats))
}

// runOverrides turns the run flags into a config layered over the file.
func runOverrides() (*config.Config, error) {
	o := &config.Config{
		SchemaDir:   schemasFlag,
		OpenAPI:     openAPIFlag,
		HistoryPath: historyFlag,
		Output:      strings.ToLower(outputFlag),
		OutputFile:  outputFileFlag,
		Concurrency: concurrencyFlag,
		Rate:        rateFlag,
		Proxy:       proxyFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, exitWith(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
		o.Timeout = int(d.Milliseconds())
	}
	if parallelFlag {
		o.Parallel = config.BoolPtr(true)
	}
	if bailFlag {
		o.Bail = config.BoolPtr(true)
	}
	if verboseFlag {
		o.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		o.NoColor = config.BoolPtr(true)
	}
	if insecureFlag {
		o.ValidateSSL = config.BoolPtr(false)
	}
	return o, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	overrides, err := runOverrides()
	if err != nil {
		return err
	}
	cfg, err := settings(overrides)
	if err != nil {
		return err
	}
	files, err := discover(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := runOnce(ctx, cmd, cfg, files)
	if err != nil {
		return err
	}
	if !watchFlag {
		if code != ExitSuccess {
			return exitWith(code, nil)
		}
		return nil
	}
	return watch(ctx, cmd, cfg, args, files)
}

// tally folds scenario reports into an exit code.
type tally struct {
	parseErrors  int
	configErrors int
	failedRows   int
	networkRows  int
	hookFailures int
}

func (t *tally) add(report *runner.Report) {
	if report.SetupErr != nil || report.TeardownErr != nil {
		t.hookFailures++
	}
	for _, o := range report.Failures() {
		t.failedRows++
		var te *http.TransportError
		if errors.As(o.Err, &te) {
			t.networkRows++
		}
	}
}

func (t *tally) addError(err error) {
	var fe *config.FatalError
	if errors.As(err, &fe) && fe.Component != "suite" {
		t.configErrors++
		return
	}
	t.parseErrors++
}

func (t *tally) code() int {
	switch {
	case t.parseErrors > 0:
		return ExitParseError
	case t.configErrors > 0:
		return ExitConfigError
	case t.failedRows > 0 && t.networkRows == t.failedRows && t.hookFailures == 0:
		return ExitNetworkError
	case t.failedRows > 0 || t.hookFailures > 0:
		return ExitTestFailure
	}
	return ExitSuccess
}

func newFormatter(cfg *config.Config, w io.Writer) (output.Formatter, error) {
	if cfg.Output == "" || cfg.Output == "console" {
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(cfg.GetVerbose()),
			output.WithNoColor(cfg.GetNoColor()),
			output.WithProgress(progressFlag),
		), nil
	}
	f, err := output.New(cfg.Output, w, cfg.GetVerbose(), cfg.GetNoColor())
	if err != nil {
		return nil, exitWith(ExitUsageError, err)
	}
	return f, nil
}

// runOnce runs every scenario of files and returns the exit code the
// results call for. The error is reserved for problems that stop the run
// before any suite is loaded.
func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, files []string) (int, error) {
	var out io.Writer = cmd.OutOrStdout()
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return 0, exitWith(ExitUsageError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	formatter, err := newFormatter(cfg, out)
	if err != nil {
		return 0, err
	}
	formatter.FormatHeader(version)

	dotenv, err := dotenvVariables(cfg)
	if err != nil {
		return 0, err
	}

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return 0, err
		}
		defer store.Close()
	}

	stderr := cmd.ErrOrStderr()
	client := newClient(cfg)
	resolver := newResolver(stderr)
	validator, err := newValidator(cfg)
	if err != nil {
		return 0, err
	}

	execOpts := []runner.Option{
		runner.WithParallel(cfg.GetParallel()),
		runner.WithConcurrency(cfg.Concurrency),
		runner.WithRate(cfg.Rate),
		runner.WithRowFilter(filterFlag),
	}
	if cfg.GetVerbose() {
		execOpts = append(execOpts, runner.WithLogger(stderrLogger{w: stderr}))
	}
	if l, ok := formatter.(runner.Listener); ok {
		execOpts = append(execOpts, runner.WithListener(l))
	}
	executor := runner.NewExecutor(execOpts...)
	collected := metrics.NewCollector()

	var t tally
	start := time.Now()
	bailed := false
	for _, path := range files {
		if bailed || ctx.Err() != nil {
			break
		}

		s, err := suite.Load(path)
		if err != nil {
			formatter.FormatError(err)
			t.addError(err)
			continue
		}
		vars, err := suiteVariables(s, cfg, dotenv)
		if err != nil {
			formatter.FormatError(fmt.Errorf("%s: %w", path, err))
			t.addError(err)
			continue
		}

		collector := stats.NewCollector()
		wr := workflow.NewRunner(client,
			workflow.WithResolver(resolver),
			workflow.WithSchemaValidator(validator),
			workflow.WithStepStats(collector),
			workflow.WithBaseDir(s.Dir),
		)
		scenarios, err := s.Plan(wr, vars)
		if err != nil {
			formatter.FormatError(fmt.Errorf("%s: %w", path, err))
			t.addError(err)
			continue
		}

		for _, sc := range scenarios {
			startedAt := time.Now()
			report := executor.Execute(ctx, sc)
			formatter.FormatReport(s.Name, report)
			collected.AddReport(s.Name, report)
			t.add(report)

			if store != nil {
				if _, err := store.Record(context.WithoutCancel(ctx), s.Name, report, startedAt); err != nil {
					fmt.Fprintf(stderr, "warning: failed to record history: %v\n", err)
				}
			}
			if cfg.GetBail() && !report.Passed() {
				bailed = true
				break
			}
		}

		collected.AddSteps(s.Name, collector)
		if cfg.GetVerbose() {
			named, _ := collector.Named()
			for _, name := range collector.Slowest(3) {
				st := named[name]
				fmt.Fprintf(stderr, "slowest step %s: p95=%v max=%v over %d\n", name, st.P95, st.Max, st.Count)
			}
		}
	}

	if err := formatter.Flush(time.Since(start)); err != nil {
		return 0, fmt.Errorf("error writing output: %w", err)
	}
	if metricsFileFlag != "" {
		if err := writeMetrics(metricsFileFlag, metricsFormatFlag, collected); err != nil {
			fmt.Fprintf(stderr, "warning: failed to write metrics: %v\n", err)
		}
	}
	return t.code(), nil
}

func writeMetrics(path, format string, c *metrics.Collector) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	exporter, err := metrics.NewExporter(strings.ToLower(format), f)
	if err != nil {
		return err
	}
	return exporter.Export(c.Snapshot())
}

func watchedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".csv", ".xlsx", ".json", ".env":
		return true
	}
	return false
}

func watch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, args, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	addDir := func(dir string) {
		if watchedDirs[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to watch %s: %v\n", dir, err)
		}
		watchedDirs[dir] = true
	}
	for _, file := range files {
		addDir(filepath.Dir(file))
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					addDir(path)
				}
				return nil
			})
		}
	}
	if cfg.OpenAPI != "" {
		addDir(filepath.Dir(cfg.OpenAPI))
	}
	if cfg.SchemaDir != "" {
		if info, err := os.Stat(cfg.SchemaDir); err == nil && info.IsDir() {
			addDir(cfg.SchemaDir)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !watchedFile(event.Name) {
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
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", name)
			current, err := discover(args)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				continue
			}
			if _, err := runOnce(ctx, cmd, cfg, current); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: watcher error: %v\n", err)
		}
	}
}
