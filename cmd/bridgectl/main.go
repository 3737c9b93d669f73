package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/objbridge/modules"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/typeext"
	"github.com/wippyai/objbridge/wrapper"
)

var (
	cfgFile string
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "Run and inspect object bridge scenarios",
	Long: `bridgectl executes YAML scenarios against a local native heap and shows
the resulting wrappers, their ownership and the parent/child forest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bridgectl.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("metrics", false, "print wrapper metrics after a run")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("metrics", rootCmd.PersistentFlags().Lookup("metrics"))

	rootCmd.AddCommand(runCmd, inspectCmd)
}

// initConfig reads the config file and BRIDGECTL_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".bridgectl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("bridgectl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
	}
}

var cliEncoderConfig = zapcore.EncoderConfig{
	LevelKey:       "level",
	NameKey:        "logger",
	MessageKey:     "msg",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseColorLevelEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
}

// setupLogging installs a console logger on every package that logs.
func setupLogging() error {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          "console",
		DisableStacktrace: true,
		DisableCaller:     true,
		EncoderConfig:     cliEncoderConfig,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger = log
	typeext.SetLogger(log.Named("typeext"))
	wrapper.SetLogger(log.Named("wrapper"))
	native.SetLogger(log.Named("native"))
	modules.SetLogger(log.Named("modules"))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
