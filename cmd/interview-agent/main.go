// Command interview-agent is the voice client for the mock interview. It
// captures the candidate's microphone, streams it to the STT provider,
// voices the interviewer's questions through the TTS provider, and renders
// the session in a terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/capture"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/config"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/interview"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/observe"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/service"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/speech"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/tui"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio/mic"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio/playback"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/stt"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/stt/deepgram"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/tts"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/tts/elevenlabs"
)

const (
	defaultBackendURL = "http://localhost:8080"
	logFileName       = "interview-agent.log"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	resumePath := flag.String("resume", "", "resume file to upload (overrides client.resume_path)")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "interview-agent: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "interview-agent: %v\n", err)
		}
		return 1
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: open log file: %v\n", err)
		return 1
	}
	defer logFile.Close()
	logger := newLogger(logFile, cfg.Client.LogLevel)
	slog.SetDefault(logger)

	resume := cfg.Client.ResumePath
	if *resumePath != "" {
		resume = *resumePath
	}
	if resume == "" {
		fmt.Fprintln(os.Stderr, "interview-agent: no resume file; set client.resume_path or pass -resume")
		return 1
	}

	backendURL := cfg.Client.BackendURL
	if backendURL == "" {
		backendURL = defaultBackendURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sttProvider, err := buildSTT(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: %v\n", err)
		return 1
	}
	ttsProvider, err := buildTTS(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: %v\n", err)
		return 1
	}

	audioCfg := audio.DefaultConfig
	if cfg.Audio.SampleRate > 0 {
		audioCfg.SampleRate = uint32(cfg.Audio.SampleRate)
	}
	var micOpts []mic.Option
	if cfg.Audio.InputDevice != "" {
		micOpts = append(micOpts, mic.WithDevice(cfg.Audio.InputDevice))
	}
	source := mic.New(audioCfg, micOpts...)
	player := playback.New(audioCfg)

	supervisor := capture.NewSupervisor(sttProvider,
		capture.WithSource(source),
		capture.WithStreamConfig(stt.StreamConfig{
			SampleRate: int(audioCfg.SampleRate),
			Channels:   int(audioCfg.Channels),
			Language:   "en",
		}),
		capture.WithLogger(logger),
		capture.WithMetrics(observe.DefaultMetrics()),
	)

	speakerOpts := []speech.Option{
		speech.WithLogger(logger),
		speech.WithPreferredProvider("elevenlabs"),
	}
	if voiceID := cfg.Providers.TTS.Voice; voiceID != "" {
		speakerOpts = append(speakerOpts, speech.WithVoice(tts.Voice{ID: voiceID, Provider: "elevenlabs"}))
	}
	speaker := speech.NewSpeaker(ttsProvider, player, speakerOpts...)

	client, err := service.NewHTTPClient(backendURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: %v\n", err)
		return 1
	}

	slog.Info("starting session", "backend", backendURL, "resume", resume)
	start, err := startSession(ctx, client, resume)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: start session: %v\n", err)
		return 1
	}
	slog.Info("session started", "session_id", start.SessionID)

	// The program pointer is written before the controller runs; snapshot
	// callbacks only fire from goroutines started inside Run.
	var program *tea.Program
	controller, err := interview.New(
		interview.Config{
			SessionID:       start.SessionID,
			FirstQuestion:   start.FirstQuestion,
			TotalTurns:      cfg.Interview.TotalTurns,
			SilenceTimeout:  cfg.Interview.SilenceTimeout.Std(),
			CeilingTimeout:  cfg.Interview.CeilingTimeout.Std(),
			FalseStartDelay: cfg.Interview.FalseStartDelay.Std(),
			StartDelay:      cfg.Interview.StartDelay.Std(),
		},
		speaker, supervisor, client,
		interview.WithLogger(logger),
		interview.WithOnUpdate(func(snap interview.Snapshot) {
			if program != nil {
				program.Send(tui.SnapshotMsg{Snapshot: snap})
			}
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: %v\n", err)
		return 1
	}

	program = tui.NewProgram(controller)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := controller.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("session error", "err", err)
		}
		program.Send(tui.SessionEndedMsg{Err: err})
	}()

	_, uiErr := program.Run()
	cancel()
	_ = controller.Close()
	if uiErr != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: ui error: %v\n", uiErr)
		return 1
	}

	// The alternate screen is gone once the UI exits; print the report so
	// the candidate can scroll back to it.
	if snap := controller.Snapshot(); snap.Status == interview.StatusComplete && snap.FinalReport != "" {
		fmt.Println("Final report")
		fmt.Println()
		fmt.Println(snap.FinalReport)
	}
	return 0
}

// startSession uploads the resume and opens a new interview.
func startSession(ctx context.Context, client *service.HTTPClient, path string) (*service.StartResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resume: %w", err)
	}
	defer f.Close()
	return client.Start(ctx, f, filepath.Base(path))
}

// buildSTT creates the Deepgram speech-to-text provider.
func buildSTT(cfg *config.Config) (stt.Provider, error) {
	entry := cfg.Providers.STT
	if entry.Name != "" && entry.Name != "deepgram" {
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
	apiKey := entry.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	var opts []deepgram.Option
	if entry.Model != "" {
		opts = append(opts, deepgram.WithModel(entry.Model))
	}
	if cfg.Audio.SampleRate > 0 {
		opts = append(opts, deepgram.WithSampleRate(cfg.Audio.SampleRate))
	}
	return deepgram.New(apiKey, opts...)
}

// buildTTS creates the ElevenLabs text-to-speech provider.
func buildTTS(cfg *config.Config) (tts.Provider, error) {
	entry := cfg.Providers.TTS
	if entry.Name != "" && entry.Name != "elevenlabs" {
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
	apiKey := entry.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	var opts []elevenlabs.Option
	if entry.Model != "" {
		opts = append(opts, elevenlabs.WithModel(entry.Model))
	}
	return elevenlabs.New(apiKey, opts...)
}

// printDevices lists the host's capture devices so the user can pick an
// audio.input_device ID.
func printDevices() int {
	devices, err := mic.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return 0
	}
	for _, d := range devices {
		fmt.Printf("%s  %s\n", d.ID, d.Name)
	}
	return 0
}

func newLogger(w *os.File, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
