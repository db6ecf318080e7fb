package cmd

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/ai"
	"github.com/jackychen-2/job-application-monitor/internal/ai/gemini"
	"github.com/jackychen-2/job-application-monitor/internal/linking"
	"github.com/jackychen-2/job-application-monitor/internal/logger"
	"github.com/jackychen-2/job-application-monitor/internal/secrets"
	"github.com/jackychen-2/job-application-monitor/internal/store"
)

const (
	app = "job-monitor"

	defaultConfirmTimeout = 30 * time.Second
)

type Config struct {
	Database string         `mapstructure:"database"`
	Account  string         `mapstructure:"account"`
	Folder   string         `mapstructure:"folder"`
	Schedule string         `mapstructure:"schedule"`
	Mailbox  *MailboxConfig `mapstructure:"mailbox"`
	AI       *AIConfig      `mapstructure:"ai"`
}

type MailboxConfig struct {
	Dump string `mapstructure:"dump"`
}

type AIConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	ConfirmTimeoutSeconds int           `mapstructure:"confirm-timeout-seconds"`
	Gemini                *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

func (c *AIConfig) confirmTimeout() time.Duration {
	if c == nil || c.ConfirmTimeoutSeconds <= 0 {
		return defaultConfirmTimeout
	}
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-monitor tracks job applications by scanning application emails",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-monitor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("database", app+".db")
	viper.SetDefault("account", "default")
	viper.SetDefault("folder", "INBOX")
}

func initConfig() {
	// The version command works without a config file.
	if versionCmd.CalledAs() != "" {
		return
	}

	viper.SetEnvPrefix("jobmon")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func openStore(config *Config, l *zap.Logger) *store.Store {
	st, err := store.Open(config.Database, l)
	if err != nil {
		l.Fatal("opening the database", zap.String("path", config.Database), zap.Error(err))
	}
	return st
}

// newResolver builds the link resolver, with an LLM confirmer when AI is
// enabled. Without it the resolver still runs all deterministic rules and
// simply never merges on ambiguity.
func newResolver(ctx context.Context, config *Config, l *zap.Logger) *linking.Resolver {
	var confirmer ai.Confirmer
	if config.AI != nil && config.AI.Enabled {
		geminiCfg := config.AI.Gemini
		if geminiCfg == nil {
			geminiCfg = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: geminiCfg.APIKey,
			Env:   "GEMINI_API_KEY",
			File:  geminiCfg.APIKeyFile,
		})
		if err != nil {
			l.Fatal("loading gemini api key",
				zap.Error(err),
				zap.String("hint", "set GEMINI_API_KEY or the 'ai.gemini.api-key-file' key in the configuration file"),
			)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, geminiCfg.Model)
		if err != nil {
			l.Fatal("creating the gemini client", zap.Error(err))
		}

		confirmerLogger := logger.WithCommonFields(l, "gemini", generator.Model())
		confirmer = gemini.NewConfirmer(generator, confirmerLogger, geminiCfg.MaxLogLength)
		l.Info("llm confirmation enabled", zap.String("model", generator.Model()))
	}

	return linking.NewResolver(confirmer, config.AI.confirmTimeout(), l)
}
