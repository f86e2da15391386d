package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/cortexlipsync/internal/avatar3d"
	"github.com/normanking/cortexlipsync/internal/bridge"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/config"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/logging"
	"github.com/normanking/cortexlipsync/internal/weights"
)

// run command - host the frame loop
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the lip-sync frame loop with the WebSocket bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Config{
				Dir:     cfg.Logging.Dir,
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
			})
			if err != nil {
				return err
			}
			defer logger.Close()

			h, err := newHost(cfg, logger)
			if err != nil {
				return err
			}
			defer h.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return h.run(ctx)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to lipsync.yaml")
	return cmd
}

// host owns the avatar and is the only goroutine that touches it.
type host struct {
	cfg     *config.Config
	log     zerolog.Logger
	events  *bus.EventBus
	avatar  *avatar3d.Avatar
	sink    *avatar3d.MemorySink
	bridge  *bridge.Server
	watcher *weights.Watcher
}

func newHost(cfg *config.Config, logger *logging.Logger) (*host, error) {
	log := logger.Component("host")

	table, err := loadTable(cfg.Table.Path)
	if err != nil {
		return nil, err
	}

	ease, err := lipsync.EasingByName(cfg.Engine.Easing)
	if err != nil {
		return nil, err
	}

	meshNames := avatar3d.ARKitNames
	if cfg.Avatar.MeshPath != "" {
		meshNames, err = avatar3d.MorphTargetNames(cfg.Avatar.MeshPath)
		if err != nil {
			return nil, err
		}
	}

	h := &host{
		cfg:    cfg,
		log:    log,
		events: bus.NewEventBus(),
		sink:   avatar3d.NewMemorySink(meshNames),
	}

	engine := lipsync.New(table,
		lipsync.WithEasing(ease),
		lipsync.WithLogger(logger.Component("engine")),
	)
	h.avatar = avatar3d.NewAvatar(avatar3d.AvatarID(cfg.Avatar.ID), engine, h.sink, meshNames,
		avatar3d.WithEventBus(h.events),
		avatar3d.WithLogger(logger.Component("avatar")),
	)

	h.events.SubscribeMultiple([]bus.EventType{
		bus.EventTypeUtteranceStarted,
		bus.EventTypeUtteranceFinished,
		bus.EventTypeTableReloaded,
		bus.EventTypeClientConnected,
		bus.EventTypeClientDisconnected,
	}, func(e bus.Event) {
		log.Debug().Str("event", string(e.Type)).Interface("data", e.Data).Msg("Event")
	})

	if cfg.Bridge.Enabled {
		h.bridge = bridge.NewServer(logger.Component("bridge"), h.events)
	}

	if cfg.Table.Watch && cfg.Table.Path != "" {
		h.watcher, err = weights.NewWatcher(cfg.Table.Path, logger.Component("watcher"))
		if err != nil {
			return nil, fmt.Errorf("watch table: %w", err)
		}
	}

	log.Info().
		Str("avatar", cfg.Avatar.ID).
		Int("blendshapes", len(meshNames)).
		Int("symbols", len(table.Symbols())).
		Str("easing", cfg.Engine.Easing).
		Msg("Host initialized")

	return h, nil
}

// run drives the frame loop until ctx is cancelled.
func (h *host) run(ctx context.Context) error {
	srv := h.httpServer()
	serveErr := make(chan error, 1)
	if srv != nil {
		go func() {
			h.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	frames := time.NewTicker(time.Second / time.Duration(h.cfg.Avatar.FrameRate))
	defer frames.Stop()

	var (
		requests  <-chan *bridge.SpeakRequest
		reloads   <-chan *weights.Table
		broadcast <-chan time.Time
	)
	if h.bridge != nil {
		defer h.bridge.Close()
		requests = h.bridge.Requests()
		bt := time.NewTicker(time.Second / time.Duration(h.cfg.Bridge.FrameRate))
		defer bt.Stop()
		broadcast = bt.C
	}
	if h.watcher != nil {
		reloads = h.watcher.Reloads()
	}

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Shutting down")
			return nil
		case err := <-serveErr:
			return fmt.Errorf("http server: %w", err)
		case now := <-frames.C:
			h.avatar.Frame(now)
		case <-broadcast:
			h.bridge.Broadcast(h.sink.Snapshot())
		case req := <-requests:
			req.Result <- h.avatar.Speak(req.Payload)
		case t := <-reloads:
			h.avatar.SetTable(t)
		}
	}
}

func (h *host) httpServer() *http.Server {
	mux := http.NewServeMux()
	routes := 0
	if h.bridge != nil {
		mux.Handle(h.cfg.Bridge.Path, h.bridge.Handler())
		routes++
	}
	if h.cfg.Metrics.Enabled {
		mux.Handle(h.cfg.Metrics.Path, promhttp.Handler())
		routes++
	}
	if routes == 0 || h.cfg.Bridge.ListenAddr == "" {
		return nil
	}
	return &http.Server{
		Addr:              h.cfg.Bridge.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *host) close() {
	if h.watcher != nil {
		if err := h.watcher.Close(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to close table watcher")
		}
	}
}
