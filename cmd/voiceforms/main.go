// voiceforms - voice driven form filling server
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koscakluka/voiceforms/core/actions"
	"github.com/koscakluka/voiceforms/core/audio/miniaudio"
	"github.com/koscakluka/voiceforms/core/audio/portaudio"
	"github.com/koscakluka/voiceforms/core/catalog"
	"github.com/koscakluka/voiceforms/core/dialogue"
	"github.com/koscakluka/voiceforms/core/intents"
	"github.com/koscakluka/voiceforms/core/intents/groq"
	"github.com/koscakluka/voiceforms/core/intents/luis"
	"github.com/koscakluka/voiceforms/core/persistence"
	stt "github.com/koscakluka/voiceforms/core/speechtotext/deepgram"
	tts "github.com/koscakluka/voiceforms/core/texttospeech/deepgram"
	"github.com/koscakluka/voiceforms/internal/api"
	"github.com/koscakluka/voiceforms/internal/config"
)

const portaudioBufferSize = 1024

type audioDevice interface {
	stt.AudioInput
	dialogue.AudioOutput
	Close()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}
	slog.Info("Catalog loaded", "intents", cat.Names())

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()
	credentials := persistence.NewCredentials(store)

	var controller *dialogue.Controller
	dispatcher := actions.NewDispatcher(
		actions.NewHTTPTransport(actions.WithTimeout(cfg.TransportTimeout)),
		credentials,
		actions.WithViewCallback(func(view actions.View) { controller.ChangeView(view) }),
	)

	hub := api.NewHub()
	opts := []dialogue.ControllerOption{
		dialogue.WithContinuousTimeout(cfg.ContinuousTimeout),
		dialogue.WithFollowUpChaining(cfg.FollowUpChaining),
		dialogue.WithEventCallback(hub.Publish),
	}

	device, err := openAudio(cfg.Audio)
	if err != nil {
		return err
	}
	if device != nil {
		defer device.Close()

		recognizer, err := stt.NewRecognizer(cfg.DeepgramAPIKey, device)
		if err != nil {
			return fmt.Errorf("failed to create recognizer: %w", err)
		}
		ttsOpts := []tts.TextToSpeechOption{tts.WithEncodingInfo(device.EncodingInfo())}
		if cfg.Voice != "" {
			ttsOpts = append(ttsOpts, tts.WithVoice(tts.Voice(cfg.Voice)))
		}
		synthesizer, err := tts.NewTextToSpeechClient(cfg.DeepgramAPIKey, ttsOpts...)
		if err != nil {
			return fmt.Errorf("failed to create synthesizer: %w", err)
		}
		opts = append(opts,
			dialogue.WithRecognizer(recognizer),
			dialogue.WithSynthesizer(synthesizer),
			dialogue.WithAudioOutput(device),
		)
	} else {
		slog.Warn("Audio disabled, answers cannot be captured")
	}

	if cfg.ClassifierEnabled() {
		classifier, err := newClassifier(cfg, cat)
		if err != nil {
			return fmt.Errorf("failed to create intent classifier: %w", err)
		}
		opts = append(opts, dialogue.WithClassifier(classifier))
	}

	controller = dialogue.NewController(cat, dispatcher, credentials, opts...)
	slog.Info("Restored view", "view", controller.RestoreView(ctx))
	handler := api.NewHandler(ctx, controller, cat, hub, api.WithListen(cfg.ClassifierEnabled()))

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "addr", cfg.Addr, "store", cfg.Store.Backend, "audio", cfg.Audio)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		controller.StopRecording()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		handler.Wait()
		slog.Info("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}

func newClassifier(cfg *config.Config, cat *catalog.Catalog) (intents.Classifier, error) {
	if cfg.LUISEndpoint != "" {
		return luis.NewClient(cfg.LUISEndpoint)
	}
	return groq.NewClassifier(cfg.GroqAPIKey, cat.Names(), groq.WithModel(cfg.GroqModel))
}

func openStore(ctx context.Context, cfg config.StoreConfig) (persistence.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		store, err := persistence.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.Info("SQLite store opened", "path", cfg.SQLitePath)
		return store, store, nil
	case config.StoreRedis:
		client, err := persistence.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("Redis store connected", "addr", cfg.RedisAddr)
		return persistence.NewRedisStore(client, cfg.RedisPrefix), client, nil
	default:
		return persistence.NewMemoryStore(), io.NopCloser(nil), nil
	}
}

func openAudio(backend string) (audioDevice, error) {
	switch backend {
	case config.AudioMiniaudio:
		device, err := miniaudio.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio device: %w", err)
		}
		return device, nil
	case config.AudioPortaudio:
		device, err := portaudio.NewClient(portaudioBufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio device: %w", err)
		}
		return device, nil
	}
	return nil, nil
}
