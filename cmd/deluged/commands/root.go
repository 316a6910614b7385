package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aresch/deluge/internal/logging"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
)

var rootCmd = &cobra.Command{
	Use:   "deluged",
	Short: "Deluge daemon",
	Long: `Deluged hosts the client's control plane: the component registry that
manages long-lived services and the framed RPC listener.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Supports per-package log levels: --log-level debug --log-level wire.protocol=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use a bare level for the default, or 'package.name=level' per package.\n"+
			"Examples: --log-level debug (all), --log-level wire.*=debug --log-level component.registry=warn")

	rootCmd.AddCommand(daemonCmd)
}

// setupLog initializes the logging system with parsed log level flags.
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}
	return logging.Configure(defaultLevel, packageLevels)
}

// parseLogLevelFlags splits flag entries into the default level and
// per-package overrides.
//
// Formats: ["debug"], ["default=info", "wire.*=debug"], or ["info"].
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			// A bare level like "debug" sets the default.
			result["default"] = flag
			continue
		}
		parts := strings.SplitN(flag, "=", 2)
		result[parts[0]] = parts[1]
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

func validateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}
