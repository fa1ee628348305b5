package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/storage"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _         _
	| | ___ __(_)___  ___ ___  _ __   ___
	| |/ / '_ \ / __|/ __/ _ \| '_ \ / _ \
	|   <| |_) | \__ \ (_| (_) | |_) |  __/
	|_|\_\ .__/|_|___/\___\___/| .__/ \___|
	     |_|                   |_|

`
)

const (
	exitFatal    = 1
	exitDegraded = 3
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kpiscope",
	Short: "KPI calculation and incremental change detection for ServiceNow incident exports.",
	Long: LOGO + `kpiscope computes configurable service management KPIs from ServiceNow incident exports,
caches the results and recomputes only what changed on the next run.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				utils.Log.Error(ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Println(err)
		os.Exit(exitFatal)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kpiscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringP("kpi-config", "c", "", "KPI configuration YAML file")
	rootCmd.PersistentFlags().String("cache-dir", "", "Cache directory (default is $HOME/.config/kpiscope/cache)")

	viper.BindPFlag("kpi_config", rootCmd.PersistentFlags().Lookup("kpi-config"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".kpiscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("kpiscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("kpi_config", "")
	viper.SetDefault("cache_dir", "")
	viper.SetDefault("concurrency", 4)
	viper.SetDefault("server.listen", ":9999")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
	viper.SetDefault("http.retry_max", 3)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.kpiscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Debugf("Could not create config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// loadKPIConfig loads the KPI configuration named by --kpi-config or the
// kpi_config setting.
func loadKPIConfig() (*config.Config, error) {
	path := viper.GetString("kpi_config")
	if path == "" {
		return nil, errors.New("no KPI configuration given, use --kpi-config or set kpi_config in ~/.kpiscope.yaml")
	}
	return config.Load(utils.ExpandPath(path))
}

// openStore opens the cache directory named by --cache-dir or the cache_dir
// setting.
func openStore() (*storage.Store, error) {
	dir, err := utils.GetAbsCacheDir(viper.GetString("cache_dir"))
	if err != nil {
		return nil, err
	}
	return storage.Open(dir, utils.Log)
}
