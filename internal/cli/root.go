package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/legalscan/internal/logging"
	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/server"
)

// Version is set at build time with -ldflags
var Version = "0.1.0"

const envPrefix = "LEGALSCAN"

var (
	cfgFile string
	envFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "legalscan",
	Short: "legalscan - heuristic risk screening for legal documents",
	Long: `legalscan reads contracts, leases and other legal documents (PDF, DOCX,
images, HTML or plain text) and reports:

- a short summary and the key clauses it found
- signs of tampering or forgery in text layout, images and metadata
- clauses and wording typical of scams or unfair agreements
- a combined Low / Medium / High risk level

Scores come from fixed heuristics. They are indicative and are not legal advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(viper.GetString("logging.level"), viper.GetBool("logging.no_color"))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of legalscan.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("legalscan v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.legalscan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	server.Version = Version

	// A missing .env file is normal; variables already set win
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", envFile, err)
		}
	}

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".legalscan"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv(viper.GetViper())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// bindEnv reads variables that match LEGALSCAN_*, e.g. LEGALSCAN_STORE_DSN for store.dsn
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// registerDefaults makes every config key known to viper so env overrides apply
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// loadConfig resolves flags, env, config file and defaults into one config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// API keys come from the provider's own variable, never from the config file
	if strings.EqualFold(cfg.LLM.Provider, "openai") {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

// bindFlags points config keys at a command's flags; only changed flags override
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// commandConfig binds the command's flags and loads the resulting config
func commandConfig(cmd *cobra.Command, keys map[string]string) (*model.Config, error) {
	if err := bindFlags(cmd, keys); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := applyLLMFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addLLMFlags registers the narrative flags shared by analyze, batch and serve
func addLLMFlags(fs *pflag.FlagSet) {
	fs.Bool("llm", false, "enable LLM summary generation (requires OPENAI_API_KEY)")
	fs.String("llm-provider", "openai", "LLM provider (openai)")
	fs.String("llm-model", "gpt-4o-mini", "LLM model name")
}

// applyLLMFlags enables the narrative when --llm is set
func applyLLMFlags(fs *pflag.FlagSet, cfg *model.Config) error {
	enabled, _ := fs.GetBool("llm")
	if !enabled {
		return nil
	}

	provider, _ := fs.GetString("llm-provider")
	cfg.LLM.Provider = provider
	if fs.Changed("llm-model") || cfg.LLM.Model == "" {
		cfg.LLM.Model, _ = fs.GetString("llm-model")
	}

	switch strings.ToLower(provider) {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %s (supported: openai)", provider)
	}
	return nil
}
