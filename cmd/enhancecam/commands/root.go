package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "enhancecam",
		Short: "EnhanceCam - Real-time camera enhancement client",
		Long: `EnhanceCam captures camera frames, streams them to a remote enhancement
service over WebSocket and renders the enhanced frames locally.

Features:
  • X11 screen-region or synthetic camera sources
  • Automatic reconnection with a fixed delay
  • Hold-to-compare between the raw and the enhanced feed
  • Per-second fps and processing-time stats
  • Local MJPEG viewer and REST control API`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/enhancecam/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "control server port (default is 8080)")
	rootCmd.PersistentFlags().String("server-host", "", "enhancement service host (default is localhost)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("control_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("server_host", rootCmd.PersistentFlags().Lookup("server-host"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
