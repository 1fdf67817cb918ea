package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vantage-compute/vantage-cli/pkg/auth"
	"github.com/vantage-compute/vantage-cli/pkg/cache"
	"github.com/vantage-compute/vantage-cli/pkg/config"
	"github.com/vantage-compute/vantage-cli/pkg/output"
)

type Config struct {
	ConfigPath   string
	TokenDir     string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath      string
	tokenDir        string
	cfg             *config.Config
	profileOverride string
	outputFormat    string
	tokenStorage    string
	verbose         bool
	writer          io.Writer
	logger          *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		TokenDir:     config.DefaultTokenCacheDir(),
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, tokenDir: cfg.TokenDir, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "vantage",
		Short:         "Vantage Compute CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.tokenDir == "" {
				rt.tokenDir = config.DefaultTokenCacheDir()
			}
			if rt.profileOverride == "" {
				rt.profileOverride = os.Getenv("VANTAGE_PROFILE")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("VANTAGE_OUTPUT")
			}
			if rt.tokenStorage == "" {
				rt.tokenStorage = os.Getenv("VANTAGE_TOKEN_STORAGE")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("VANTAGE_VERBOSE"), "true")
			}

			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.profileOverride, "profile", "p", "", "Profile name override")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.tokenStorage, "token-storage", "", "Token storage backend: file or keyring")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable verbose logging to stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewLoginCommand(),
		NewLogoutCommand(),
		NewWhoamiCommand(),
		NewQueryCommand(),
		NewConfigCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// EnsureConfigLoaded loads the config file, falling back to the built-in
// defaults when no file exists yet so first-run login works out of the box.
func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			defaults := config.DefaultConfig()
			rt.cfg = &defaults
			return nil
		}
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) Profile() string {
	if rt.profileOverride != "" {
		return rt.profileOverride
	}
	if rt.cfg != nil {
		return rt.cfg.CurrentProfileOrDefault()
	}
	return config.DefaultProfile
}

func (rt *runtimeState) Settings() config.Settings {
	if rt.cfg == nil {
		return config.DefaultSettings()
	}
	settings, _ := rt.cfg.ProfileSettings(rt.Profile())
	return settings
}

func (rt *runtimeState) Store() (cache.Store, error) {
	switch rt.tokenStorage {
	case "", "file":
		return cache.NewFileStore(rt.tokenDir), nil
	case "keyring":
		return cache.NewKeyringStore(cache.DefaultKeyringService), nil
	default:
		return nil, errors.New("unknown token storage backend: " + rt.tokenStorage)
	}
}

func (rt *runtimeState) Manager() (*auth.Manager, error) {
	store, err := rt.Store()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(store, rt.Settings(), nil, rt.Logger()), nil
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.logger != nil {
		return rt.logger
	}
	if rt.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		if log, err := cfg.Build(); err == nil {
			rt.logger = log.Sugar()
			return rt.logger
		}
	}
	rt.logger = zap.NewNop().Sugar()
	return rt.logger
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) OutputFormat() output.Format {
	if rt.outputFormat != "" {
		return output.Format(rt.outputFormat)
	}
	return output.FormatTable
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}
