package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikesmullin/perception-voice/internal/audio"
	"github.com/mikesmullin/perception-voice/internal/capture"
	"github.com/mikesmullin/perception-voice/internal/client"
	"github.com/mikesmullin/perception-voice/internal/config"
	"github.com/mikesmullin/perception-voice/internal/dispatch"
	"github.com/mikesmullin/perception-voice/internal/metrics"
	"github.com/mikesmullin/perception-voice/internal/server"
	"github.com/mikesmullin/perception-voice/internal/store"
	"github.com/mikesmullin/perception-voice/internal/transcription"
	"github.com/mikesmullin/perception-voice/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "perception-voice"
	serviceVersion    = "1.0.0"
)

// Exit codes: 0 success, 1 runtime error, 2 usage error.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configPath := flags.String("config", defaultConfigPath, "Path to configuration file")
	flags.Usage = func() { printUsage(flags) }

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(flags)
		return exitUsage
	}

	switch rest[0] {
	case "serve":
		return runServe(*configPath)
	case "client":
		return runClient(*configPath, rest[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", rest[0])
		printUsage(flags)
		return exitUsage
	}
}

func printUsage(flags *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage:
  %[1]s [-config path] serve             Run the transcription daemon
  %[1]s [-config path] client set <uid>  Move a client marker to now
  %[1]s [-config path] client get <uid>  Print utterances since the marker

Flags:
`, serviceName)
	flags.PrintDefaults()
}

// runClient executes one set/get request against a running daemon
func runClient(configPath string, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: client set|get <uid>")
		return exitUsage
	}
	command, uid := args[0], args[1]

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	c := client.New(cfg.Server.SocketPath, cfg.Server.MaxMessageBytes)

	switch command {
	case "set":
		if err := c.SetMarker(uid); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK

	case "get":
		text, err := c.GetSince(uid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		if text != "" {
			fmt.Println(text)
		}
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "Unknown client command: %s\n", command)
		return exitUsage
	}
}

// runServe builds the pipeline and runs the daemon until a signal arrives
func runServe(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("socket_path", cfg.Server.SocketPath),
		slog.Int("retention_minutes", cfg.Server.RetentionMinutes),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("chunk_size", cfg.Audio.ChunkSize),
		slog.Float64("energy_threshold", float64(cfg.VAD.EnergyThreshold)),
		slog.String("silero_model_path", cfg.VAD.SileroModelPath),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()

	st := store.New(cfg.Server.GetRetentionDuration(), cfg.Server.DiscardPhrases)

	energy, err := vad.NewEnergyDetector(cfg.VAD.EnergyThreshold)
	if err != nil {
		logger.Error("Failed to create energy detector", slog.String("error", err.Error()))
		return exitError
	}

	silero, err := vad.NewSileroDetector(vad.SileroConfig{
		ModelPath:  cfg.VAD.SileroModelPath,
		SampleRate: cfg.Audio.SampleRate,
		Threshold:  cfg.VAD.SileroThreshold,
	})
	if err != nil {
		logger.Error("Failed to load silero model", slog.String("error", err.Error()))
		return exitError
	}
	defer silero.Close()

	cascade := vad.NewCascade(energy, silero)

	segmenter := audio.NewSegmenter(audio.SegmenterConfig{
		SampleRate:           cfg.Audio.SampleRate,
		ChunkSize:            cfg.Audio.ChunkSize,
		MinUtteranceDuration: cfg.Audio.GetMinUtteranceDuration(),
		PostSpeechSilence:    cfg.Audio.GetPostSpeechSilenceDuration(),
		PreRollDuration:      cfg.Audio.GetPreRollDuration(),
	})

	engine, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		BeamSize:      cfg.Transcription.BeamSize,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		Metrics:       appMetrics,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		return exitError
	}

	source := capture.NewPortAudioSource(cfg.Audio.SampleRate, cfg.Audio.ChunkSize, cfg.Audio.MicDevice, logger, appMetrics)

	dispatcher := dispatch.New(dispatch.Config{
		Source:    source,
		Detector:  cascade,
		Segmenter: segmenter,
		Engine:    engine,
		Store:     st,
		Logger:    logger,
		Metrics:   appMetrics,
	})

	socketServer := server.NewSocketServer(cfg.Server.SocketPath, cfg.Server.MaxMessageBytes, st, logger, appMetrics)
	if err := socketServer.Start(); err != nil {
		logger.Error("Failed to start socket server", slog.String("error", err.Error()))
		return exitError
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, st, socketServer, dispatcher.GetStats)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			socketServer.Stop()
			return exitError
		}
	}

	dispatcherDone := make(chan error, 1)
	go func() { dispatcherDone <- dispatcher.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("socket_path", cfg.Server.SocketPath),
	)

	exitCode := exitOK
	dispatcherFinished := false
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-dispatcherDone:
		dispatcherFinished = true
		if err != nil {
			logger.Error("Capture pipeline failed", slog.String("error", err.Error()))
			exitCode = exitError
		} else {
			logger.Info("Capture pipeline finished")
		}
	}

	logger.Info("Starting graceful shutdown...")

	cancel()
	if !dispatcherFinished {
		select {
		case err := <-dispatcherDone:
			if err != nil {
				logger.Error("Error stopping dispatcher", slog.String("error", err.Error()))
			}
		case <-time.After(30 * time.Second):
			logger.Warn("Dispatcher did not stop in time")
		}
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	if err := socketServer.Stop(); err != nil {
		logger.Error("Error stopping socket server", slog.String("error", err.Error()))
	}

	if err := engine.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	stats := st.GetStats()
	logger.Info("Service stopped",
		slog.Int("stored_utterances", stats.Utterances),
		slog.Int("client_markers", stats.Markers),
	)

	return exitCode
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
