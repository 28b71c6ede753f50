package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/praetorian-inc/auditgraph/internal/config"
	"github.com/praetorian-inc/auditgraph/internal/logs"
	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/auth"
	"github.com/praetorian-inc/auditgraph/pkg/catalog"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
	"github.com/praetorian-inc/auditgraph/pkg/runner"
	"github.com/praetorian-inc/auditgraph/version"
)

const (
	LogLevelKey = "log.level"
	LogFileKey  = "log.file"
	NoColorKey  = "no_color"
	QuietKey    = "quiet"
	OutputKey   = "output"
)

var (
	cfgFile  string
	logger   = logs.ConsoleLogger()
	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "auditgraph",
	Short: "auditgraph exports Microsoft 365 audit data through Microsoft Graph.",
	Long: `auditgraph authenticates as a registered application (client credentials),
fetches Microsoft Graph resources such as directory audits and sign-ins,
and saves them as spreadsheets. It can also check which permissions the
application has been granted.`,
	Version: version.AbbreviatedVersion(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, configErr := initConfig()

		message.SetQuiet(viper.GetBool(QuietKey))
		if viper.GetBool(NoColorKey) {
			message.SetNoColor(true)
		}

		l, closer, err := logs.New(logs.Options{
			Level:   viper.GetString(LogLevelKey),
			File:    viper.GetString(LogFileKey),
			NoColor: viper.GetBool(NoColorKey),
		})
		if err != nil {
			return err
		}
		logger = l.With("run", uuid.NewString())
		closeLog = closer
		slog.SetDefault(logger)

		if configErr != nil {
			return configErr
		}
		if configPath != "" {
			logger.Debug("using config file", "path", configPath)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		message.Critical("%v", err)
		_ = closeLog()
		stop()
		os.Exit(1)
	}
}

func init() {
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.auditgraph.yaml)")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	bindFlag(flags, LogLevelKey, "log-level")

	flags.String("log-file", "", "Write JSON logs to this file instead of the console")
	bindFlag(flags, LogFileKey, "log-file")

	flags.Bool("no-color", false, "Disable color output")
	bindFlag(flags, NoColorKey, "no-color")

	flags.BoolP("quiet", "q", false, "Only print warnings and errors")
	bindFlag(flags, QuietKey, "quiet")

	flags.StringP("output", "o", ".", "Directory that output files are written to")
	bindFlag(flags, OutputKey, "output")

	flags.String("tenant-id", "", "Directory (tenant) id")
	bindFlag(flags, config.TenantIDKey, "tenant-id")

	flags.String("client-id", "", "Application (client) id")
	bindFlag(flags, config.ClientIDKey, "client-id")

	flags.String("auth-mode", config.AuthModeClientSecret, "Token acquisition: client-secret or azidentity")
	bindFlag(flags, config.AuthModeKey, "auth-mode")

	flags.String("graph-url", config.DefaultGraphURL, "Microsoft Graph base URL")
	bindFlag(flags, config.GraphURLKey, "graph-url")

	flags.Duration("timeout", config.DefaultTimeout, "Per-request HTTP timeout")
	bindFlag(flags, config.TimeoutKey, "timeout")

	flags.String("endpoints-file", "", "YAML file with extra or overriding endpoint definitions")
	bindFlag(flags, config.EndpointsFileKey, "endpoints-file")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// bindFlag ties a viper key to a flag. A flag set on the command line
// overrides the config file and the environment.
func bindFlag(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() (string, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".auditgraph")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", fmt.Errorf("read config: %w", err)
		}
		return "", nil
	}
	return viper.ConfigFileUsed(), nil
}

// app holds the components shared by the commands that talk to Graph.
type app struct {
	cfg        config.Config
	httpClient *http.Client
	provider   auth.TokenProvider
	client     *graphapi.Client
	catalog    *catalog.Catalog
	runner     *runner.Runner
}

func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "credentials", cfg.Credentials.String(), "auth_mode", cfg.AuthMode, "graph_url", cfg.GraphURL)

	httpClient := &http.Client{Timeout: cfg.Timeout}

	provider, err := auth.NewProvider(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	client := graphapi.NewClient(graphapi.ClientOptions{
		HTTPClient: httpClient,
		BaseURL:    cfg.GraphURL,
		MaxPages:   cfg.MaxPages,
		UserAgent:  version.UserAgent(),
		Logger:     logger,
	})

	cat, err := loadCatalog(cfg.EndpointsFile)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		httpClient: httpClient,
		provider:   provider,
		client:     client,
		catalog:    cat,
		runner:     runner.New(provider, client, cat, logger),
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	cat := catalog.Default()
	if path == "" {
		return cat, nil
	}
	if err := cat.LoadFile(path); err != nil {
		return nil, err
	}
	logger.Debug("endpoint overrides loaded", "path", path)
	return cat, nil
}

// outputPath places name in the --output directory.
func outputPath(name string) string {
	return filepath.Join(strings.TrimSpace(viper.GetString(OutputKey)), name)
}
