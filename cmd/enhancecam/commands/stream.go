package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/enhancecam/enhancecam/internal/api"
	"github.com/enhancecam/enhancecam/internal/config"
	"github.com/enhancecam/enhancecam/internal/logger"
	"github.com/enhancecam/enhancecam/internal/pipeline"
)

var (
	autoStart bool

	streamCmd = &cobra.Command{
		Use:   "stream",
		Short: "Start the EnhanceCam streaming client",
		Long: `Start the streaming client: connect to the enhancement service, serve the
local viewer and control API, and (optionally) begin capturing right away.

The client keeps reconnecting to the service with a fixed delay whenever the
connection drops.`,
		Example: `  # Start the client against the default service (localhost:8000)
  enhancecam stream

  # Start capturing immediately
  enhancecam stream --auto-start

  # Point at a remote enhancement service
  enhancecam stream --server-host gpu-box.local

  # Start with debug logging
  enhancecam stream --log-level debug`,
		RunE: runStream,
	}
)

func init() {
	streamCmd.Flags().BoolVar(&autoStart, "auto-start", false, "begin capturing as soon as the client starts")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Flag overrides
	if viper.IsSet("control_port") {
		if port := viper.GetInt("control_port"); port > 0 {
			configMgr.SetControlPort(port)
		}
	}
	if viper.IsSet("server_host") {
		if host := viper.GetString("server_host"); host != "" {
			configMgr.SetServerHost(host)
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("main")

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("server", cfg.Server.URL()).
		Msg("Starting EnhanceCam")

	streamer := pipeline.NewStreamer(cfg, pipeline.Options{})
	defer streamer.Teardown()

	streamer.Connect()

	if autoStart {
		if err := streamer.Start(); err != nil {
			log.Error().Err(err).Msg("Auto-start failed, use the viewer to retry")
		}
	}

	server := api.NewServer(streamer)
	go func() {
		if err := server.Start(cfg.ControlPort); err != nil {
			log.Fatal().Err(err).Msg("Control server error")
		}
	}()

	log.Info().
		Str("viewer", fmt.Sprintf("http://localhost:%d", cfg.ControlPort)).
		Str("stream", fmt.Sprintf("http://localhost:%d/stream", cfg.ControlPort)).
		Msg("EnhanceCam is running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	return nil
}
