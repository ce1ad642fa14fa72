package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/choreboard/internal/api"
	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/config"
	"github.com/btouchard/choreboard/internal/hub"
	boardmcp "github.com/btouchard/choreboard/internal/mcp"
	"github.com/btouchard/choreboard/internal/notify"
	"github.com/btouchard/choreboard/internal/store"
	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
	"github.com/btouchard/choreboard/internal/tunnel"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("choreboard %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	case "vapid":
		cmdVAPID()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: choreboard <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the board server\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  vapid     Generate a VAPID key pair for push notifications\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting choreboard",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	_, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func cmdVAPID() {
	pub, priv, err := notify.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("push:\n  vapid_public_key: %s\n  vapid_private_key: %s\n", pub, priv)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func seedTasks(cfg *config.Config) []task.Task {
	seed := make([]task.Task, 0, len(cfg.Board.Tasks))
	for _, tc := range cfg.Board.Tasks {
		seed = append(seed, task.Task{
			ID:          tc.ID,
			Title:       tc.Title,
			Description: tc.Description,
			Status:      task.StatusIncomplete,
		})
	}
	return seed
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- Store ---
	st, err := store.Open(ctx, store.Options{
		Driver:    cfg.Database.Driver,
		Path:      cfg.Database.Path,
		RedisURL:  cfg.Database.RedisURL,
		KeyPrefix: cfg.Database.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	var (
		taskPersist task.Persister
		subPersist  subscription.Persister
		pinger      api.Pinger
	)
	if st != nil {
		defer func() { _ = st.Close() }()
		taskPersist, subPersist, pinger = st, st, st
		slog.Info("store opened", "driver", cfg.Database.Driver)
	} else {
		slog.Warn("memory driver selected, board state is not persisted")
	}

	// --- Board ---
	tasks, err := task.NewStore(seedTasks(cfg), taskPersist)
	if err != nil {
		return fmt.Errorf("creating task store: %w", err)
	}
	if err := tasks.Load(ctx); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	subs := subscription.NewRegistry(subPersist)
	if err := subs.Load(ctx); err != nil {
		return fmt.Errorf("loading subscriptions: %w", err)
	}
	slog.Info("board loaded", "tasks", tasks.Len(), "subscriptions", subs.Len())

	// --- Viewers ---
	viewers := hub.New(tasks.All, hub.Options{
		OutboxSize:   cfg.Stream.OutboxSize,
		Keepalive:    cfg.Stream.Keepalive,
		WriteTimeout: cfg.Stream.WriteTimeout,
	})
	defer viewers.Close()

	proc := board.NewProcessor(tasks, subs,
		board.WithBroadcaster(viewers),
		board.WithContext(ctx),
	)

	// --- Notifications ---
	var notifiers []notify.Notifier
	vapidPublic := ""
	if cfg.Push.Enabled {
		pusher := notify.NewWebPush(notify.VAPID{
			PublicKey:  cfg.Push.VAPIDPublicKey,
			PrivateKey: cfg.Push.VAPIDPrivateKey,
			Subject:    cfg.Push.Subject,
		}, int(cfg.Push.TTL.Seconds()), &http.Client{Timeout: cfg.Push.Timeout})
		notifiers = append(notifiers, notify.NewDispatcher(subs, pusher, notify.DispatcherOptions{
			Parallelism: cfg.Push.Parallelism,
			Timeout:     cfg.Push.Timeout,
		}))
		vapidPublic = cfg.Push.VAPIDPublicKey
		slog.Info("web push enabled", "parallelism", cfg.Push.Parallelism)
	}

	// --- MCP Server ---
	var mcpHTTP http.Handler
	if cfg.MCP.Enabled {
		mcpServer := boardmcp.NewServer(&boardmcp.Deps{
			Board:   proc,
			Version: version,
		})
		notifiers = append(notifiers, notify.NewMCPNotifier(mcpServer))
		mcpHTTP = server.NewStreamableHTTPServer(mcpServer)
	}
	proc.SetNotifier(notify.NewFanout(notifiers...))

	// --- HTTP Router ---
	router := api.NewRouter(api.Deps{
		Board:          proc,
		Hub:            viewers,
		VAPIDPublicKey: vapidPublic,
		MCP:            mcpHTTP,
		Store:          pinger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      rateLimit(cfg),
		RateWindow:     cfg.RateLimit.Window,
		Keepalive:      cfg.Stream.Keepalive,
	})

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	listeners := []net.Listener{ln}
	if cfg.Tunnel.Enabled {
		tun := tunnel.NewNgrok(cfg.Tunnel.AuthToken, cfg.Tunnel.Domain)
		url, err := tun.Start(ctx, addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("starting tunnel: %w", err)
		}
		defer func() { _ = tun.Close() }()
		listeners = append(listeners, tun.Listener())
		slog.Info("board is public", "url", url)
	}

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func() {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}
	slog.Info("choreboard is ready", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Streams never go idle on their own; drop viewers so Shutdown can finish.
	viewers.Close()
	err = srv.Shutdown(shutdownCtx)
	proc.Wait()
	return err
}

func rateLimit(cfg *config.Config) int {
	if !cfg.RateLimit.Enabled {
		return 0
	}
	return cfg.RateLimit.Requests
}
