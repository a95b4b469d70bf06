package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/contractkit/packages/builtin"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/env"
	"github.com/abdul-hamid-achik/contractkit/packages/fixture"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/schema"
	"github.com/abdul-hamid-achik/contractkit/packages/suite"
)

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

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Flags shared by every command that loads suites.
var (
	envFlag     string
	envFileFlag string
	configFlag  string
	seedFlag    int64
)

func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd, listCmd, coverageCmd} {
		c.Flags().StringVarP(&envFlag, "env", "e", getEnvString("CONTRACTKIT_ENV", ""), "Suite environment to use (env: CONTRACTKIT_ENV)")
		c.Flags().StringVar(&envFileFlag, "env-file", getEnvString("CONTRACTKIT_ENV_FILE", ""), "Path to .env file for variable interpolation (env: CONTRACTKIT_ENV_FILE)")
		c.Flags().StringVar(&configFlag, "config", getEnvString("CONTRACTKIT_CONFIG", ""), "Path to config file (env: CONTRACTKIT_CONFIG)")
	}
	runCmd.Flags().Int64Var(&seedFlag, "seed", int64(getEnvInt("CONTRACTKIT_SEED", 0)), "Seed for generated fixture fields, 0 for random (env: CONTRACTKIT_SEED)")
}

// settings loads the config file and applies the flags that were set.
func settings(override *config.Config) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	if envFileFlag != "" {
		if override == nil {
			override = &config.Config{}
		}
		override.EnvFile = envFileFlag
	}
	cfg := fileConfig.Merge(override)
	if cfg.Concurrency < 0 {
		return nil, config.Fatalf("config", "concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if cfg.Rate < 0 {
		return nil, config.Fatalf("config", "rate must not be negative, got %v", cfg.Rate)
	}
	return cfg, nil
}

// dotenvVariables reads the configured .env file, if any.
func dotenvVariables(cfg *config.Config) (map[string]any, error) {
	if cfg.EnvFile == "" {
		return nil, nil
	}
	dotenv, err := env.LoadDotEnv(cfg.EnvFile)
	if err != nil {
		return nil, config.WrapFatal("env", "cannot load "+cfg.EnvFile, err)
	}
	return env.StringVariables(dotenv), nil
}

// suiteVariables layers config variables, the suite's variables for the
// selected environment and the .env file, later layers winning.
func suiteVariables(s *suite.Suite, cfg *config.Config, dotenv map[string]any) (map[string]any, error) {
	vars, err := s.Variables(envFlag)
	if err != nil {
		return nil, err
	}
	return env.MergeVariables(cfg.Variables, vars, dotenv), nil
}

func variableKeys(vars map[string]any) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func discover(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		found, err := suite.Discover(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, exitWith(ExitUsageError, fmt.Errorf("no %v files found", suite.Extensions))
	}
	return files, nil
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithTimeout(time.Duration(cfg.Timeout) * time.Millisecond),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}
	return http.NewClient(opts...)
}

// newValidator serves schemas from the OpenAPI document, when configured,
// before the schema directory.
func newValidator(cfg *config.Config) (*schema.Validator, error) {
	var stores schema.Chain
	if cfg.OpenAPI != "" {
		api, err := schema.LoadOpenAPIStore(cfg.OpenAPI)
		if err != nil {
			return nil, err
		}
		stores = append(stores, api)
	}
	stores = append(stores, schema.NewDirStore(cfg.SchemaDir))
	return schema.NewValidator(stores), nil
}

func newResolver(stderr io.Writer) *env.Resolver {
	var genOpts []fixture.Option
	if seedFlag != 0 {
		genOpts = append(genOpts, fixture.WithSeed(seedFlag))
	}
	res := env.NewResolver()
	res.SetFuncs(builtin.NewRegistry(fixture.NewGenerator(genOpts...)))
	res.SetWarnFunc(func(format string, args ...any) {
		fmt.Fprintf(stderr, "%s "+format+"\n", append([]any{color.New(color.FgYellow).Sprint("warning:")}, args...)...)
	})
	return res
}

// stderrLogger implements runner.Logger.
type stderrLogger struct {
	w io.Writer
}

func (l stderrLogger) Printf(format string, args ...any) {
	fmt.Fprintln(l.w, color.New(color.Faint).Sprintf(format, args...))
}
