// Command beamgrid serves the beam grid simulator.
//
// Subcommands:
//  1. "serve" (default) runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "energize" and "sweep" run a single layout file from the command line
//
// Flags control host/port, config and sessions directories, sweep workers,
// debug logging, and optional ngrok tunneling for external access.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/beamgrid/api"
	"github.com/wricardo/mcp-training/beamgrid/game/config"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
	"github.com/wricardo/mcp-training/beamgrid/game/session"
	"github.com/wricardo/mcp-training/beamgrid/transport/mcp"
	"github.com/wricardo/mcp-training/beamgrid/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Beam Grid Server"
)

const (
	sessionCleanupInterval = time.Hour
	sessionMaxAge          = 24 * time.Hour
	filesystemSyncInterval = 5 * time.Second
)

// main loads .env, then runs the root command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warn("Error loading .env file")
		}
	} else {
		logrus.Info("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("beamgrid failed")
	}
}

// serverOptions are the resolved flags shared by serve and stdio-mcp
type serverOptions struct {
	Host          string
	Port          int
	ConfigDir     string
	DefaultConfig string
	SessionsDir   string
	Workers       int
	Ngrok         ngrokOptions
}

// services are the wired managers behind the beam service
type services struct {
	Beam     service.BeamService
	Sessions *session.Manager
	Configs  *config.Manager
}

type ngrokOptions struct {
	Enabled   bool
	AuthToken string
	Domain    string
}

// newApp builds the root command. Flags are read from the command line
// first and the environment second.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "beamgrid",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory containing layout configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "default-config",
				Usage:   "Layout used by sessions created without a config ID",
				Sources: cli.EnvVars("DEFAULT_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "Directory for persisted session metadata (empty disables persistence)",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Concurrent runs per sweep (0 uses all CPUs)",
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return ctx, nil
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, reusing or starting an HTTP API",
				Action:  runStdioMCP,
			},
			{
				Name:      "energize",
				Usage:     "Energize one layout file from an entry",
				ArgsUsage: "<layout-file>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "x", Value: -1, Usage: "Entry column (1-based; default: layout entry)"},
					&cli.IntFlag{Name: "y", Value: -1, Usage: "Entry row (1-based; default: layout entry)"},
					&cli.StringFlag{Name: "direction", Aliases: []string{"d"}, Usage: "Entry heading: up, down, left, right"},
					&cli.BoolFlag{Name: "overlay", Usage: "Print the grid with energized tiles marked #"},
				},
				Action: runEnergize,
			},
			{
				Name:      "sweep",
				Usage:     "Find the best boundary entry of a layout file",
				ArgsUsage: "<layout-file>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Value: 0, Usage: "Also list the N strongest entries"},
				},
				Action: runSweep,
			},
		},
	}
}

func optionsFrom(cmd *cli.Command) serverOptions {
	return serverOptions{
		Host:        cmd.String("host"),
		Port:        int(cmd.Int("port")),
		ConfigDir:     cmd.String("config-dir"),
		DefaultConfig: cmd.String("default-config"),
		SessionsDir:   cmd.String("sessions-dir"),
		Workers:       int(cmd.Int("workers")),
		Ngrok: ngrokOptions{
			Enabled:   cmd.Bool("ngrok"),
			AuthToken: cmd.String("ngrok-auth"),
			Domain:    cmd.String("ngrok-domain"),
		},
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	logrus.WithField("version", Version).Infof("Starting %s", AppName)

	svcs, err := initializeServices(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	return runHTTPServer(ctx, svcs, opts)
}

func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)

	svcs, err := initializeServices(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer saveSessions(svcs.Sessions)

	return runStdioMCPWithInternalServer(ctx, svcs.Beam, opts)
}

// newHandler combines the REST API with the /mcp JSON-RPC endpoint
func newHandler(beamService service.BeamService, hub *websocket.Hub, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(beamService, hub))

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer serves until ctx is cancelled, then flushes sessions to
// persistence. If ngrok is enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, svcs *services, opts serverOptions) error {
	hub := websocket.NewHub()
	go hub.Run(ctx)

	addr := net.JoinHostPort(opts.Host, fmt.Sprint(opts.Port))
	mcpClient := mcp.NewClient("http://" + addr)
	handler := newHandler(svcs.Beam, hub, mcpClient)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Sweeps of large layouts can outlast a short write timeout
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logrus.WithFields(logrus.Fields{
			"addr":      addr,
			"rest":      fmt.Sprintf("http://%s/api", addr),
			"websocket": fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp":       fmt.Sprintf("http://%s/mcp", addr),
		}).Info("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if opts.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, opts.Ngrok, handler)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logrus.Info("Shutting down...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	saveSessions(svcs.Sessions)
	logrus.Info("Server stopped")
	return runErr
}

// saveSessions writes every in-memory session to persistence
func saveSessions(manager *session.Manager) {
	if err := manager.SaveAllSessions(); err != nil {
		logrus.WithError(err).Warn("Failed to save sessions on shutdown")
		return
	}
	logrus.WithField("sessions", manager.Count()).Debug("Sessions saved")
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is done
func runNgrokTunnel(ctx context.Context, opts ngrokOptions, handler http.Handler) {
	if opts.AuthToken == "" {
		logrus.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logrus.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if opts.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.Domain))
		logrus.WithField("domain", opts.Domain).Info("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.AuthToken))
	if err != nil {
		logrus.WithError(err).Warn("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	logrus.WithFields(logrus.Fields{
		"url":       ngrokURL,
		"rest":      ngrokURL + "/api",
		"websocket": ngrokURL + "/ws?session=<session_id>",
		"mcp":       ngrokURL + "/mcp",
	}).Info("Ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logrus.WithError(err).Warn("Ngrok server error")
	}
	logrus.Info("Ngrok tunnel closed")
}

// initializeServices wires session/config managers and the beam service.
// It also starts background routines that prune idle sessions, drop
// sessions whose persisted file was removed and reload edited layouts.
func initializeServices(ctx context.Context, opts serverOptions) (*services, error) {
	configManager, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if opts.DefaultConfig != "" {
		if err := configManager.SetDefault(opts.DefaultConfig); err != nil {
			return nil, fmt.Errorf("failed to set default config %q: %w", opts.DefaultConfig, err)
		}
	}

	var sessionManager *session.Manager
	var persistence session.SessionPersistence
	if opts.SessionsDir != "" {
		fp, err := session.NewFilePersistence(opts.SessionsDir, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		persistence = fp
		sessionManager = session.NewManagerWithPersistence(fp)
	} else {
		sessionManager = session.NewManager()
	}
	sessionManager.SetWorkers(opts.Workers)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logrus.WithError(err).Warn("Failed to load persisted sessions")
	}

	sessionManager.StartCleanup(ctx, sessionCleanupInterval, sessionMaxAge)
	if persistence != nil {
		go filesystemSyncRoutine(ctx, sessionManager, persistence)
	}
	go configSyncRoutine(ctx, configManager, opts.ConfigDir)

	logrus.WithFields(logrus.Fields{
		"config_dir":     opts.ConfigDir,
		"default_layout": configManager.DefaultName(),
		"sessions":       sessionManager.Count(),
	}).Debug("Services initialized")

	return &services{
		Beam:     service.NewBeamService(sessionManager, configManager),
		Sessions: sessionManager,
		Configs:  configManager,
	}, nil
}

// configSyncRoutine drops the layout cache whenever a file in the config
// directory changes, so edited layouts are picked up by new sessions
func configSyncRoutine(ctx context.Context, manager *config.Manager, dir string) {
	ticker := time.NewTicker(filesystemSyncInterval)
	defer ticker.Stop()

	last := configDirStamp(dir)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		last = syncConfigs(manager, dir, last)
	}
}

// syncConfigs refreshes the cache if the directory changed since last and
// returns the new stamp
func syncConfigs(manager *config.Manager, dir string, last time.Time) time.Time {
	stamp := configDirStamp(dir)
	if !stamp.After(last) {
		return last
	}

	if err := manager.RefreshCache(); err != nil {
		logrus.WithError(err).Warn("Failed to refresh layout cache")
		return last
	}
	logrus.WithFields(logrus.Fields{
		"config_dir":     dir,
		"default_layout": manager.DefaultName(),
	}).Info("Layout cache refreshed")
	return stamp
}

// configDirStamp is the latest modification time of dir and its files
func configDirStamp(dir string) time.Time {
	var stamp time.Time
	if info, err := os.Stat(dir); err == nil {
		stamp = info.ModTime()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return stamp
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(stamp) {
			stamp = info.ModTime()
		}
	}
	return stamp
}

// filesystemSyncRoutine removes sessions from memory when their persisted
// file has been deleted out from under the server.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(filesystemSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pruned := 0
		for _, sess := range manager.List() {
			if !persistence.Exists(sess.ID) {
				if err := manager.DeleteFromMemory(sess.ID); err == nil {
					pruned++
					logrus.WithField("session", sess.ID).Debug("Pruned session from memory (file deleted)")
				}
			}
		}

		if pruned > 0 {
			logrus.WithField("pruned", pruned).Info("Filesystem sync pruned orphaned sessions")
		}
	}
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses an API
// already listening on host:port; otherwise it starts an internal HTTP API
// on a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, beamService service.BeamService, opts serverOptions) error {
	externalURL := "http://" + net.JoinHostPort(opts.Host, fmt.Sprint(opts.Port))
	baseURL := externalURL

	logrus.WithField("url", externalURL).Info("Checking for external API server")

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logrus.WithField("url", externalURL).Info("External API server found, using it for MCP")
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		logrus.WithField("addr", internalAddr).Info("Starting internal HTTP server for MCP stdio")

		hub := websocket.NewHub()
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(beamService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Warn("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	logrus.WithField("api", baseURL).Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// loadLayoutFile decodes a layout file in any supported format
func loadLayoutFile(path string) (*engine.LayoutConfig, error) {
	format := config.FormatOf(path)
	if format == "" {
		return nil, fmt.Errorf("%w: unsupported layout file %s", service.ErrInvalidConfig, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return config.DecodeLayout(data, format, stem)
}

func simulatorFor(cmd *cli.Command) (*engine.Simulator, error) {
	if cmd.Args().Len() != 1 {
		return nil, fmt.Errorf("expected exactly one layout file, got %d arguments", cmd.Args().Len())
	}

	layout, err := loadLayoutFile(cmd.Args().First())
	if err != nil {
		return nil, err
	}

	sim, err := engine.NewSimulator(layout)
	if err != nil {
		return nil, err
	}
	sim.SetWorkers(int(cmd.Int("workers")))
	return sim, nil
}

func runEnergize(ctx context.Context, cmd *cli.Command) error {
	sim, err := simulatorFor(cmd)
	if err != nil {
		return err
	}

	entry := sim.GetConfig().DefaultEntry()
	x, y, direction := int(cmd.Int("x")), int(cmd.Int("y")), cmd.String("direction")
	if x >= 0 || y >= 0 || direction != "" {
		if x < 0 || y < 0 || direction == "" {
			return errors.New("--x, --y and --direction must be given together")
		}
		dir, err := engine.ParseDirection(direction)
		if err != nil {
			return err
		}
		entry = engine.BeamState{Pos: engine.Position{X: x, Y: y}, Dir: dir}
	}

	record, run, err := sim.Trace(entry)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	fmt.Fprintf(out, "%d\n", record.Energized)

	if cmd.Bool("overlay") {
		for _, row := range run.Overlay(sim.TileMap()) {
			fmt.Fprintln(out, row)
		}
	}

	logrus.WithFields(logrus.Fields{
		"entry":   entry.String(),
		"elapsed": record.Elapsed,
	}).Debug("Energize complete")
	return nil
}

func runSweep(ctx context.Context, cmd *cli.Command) error {
	sim, err := simulatorFor(cmd)
	if err != nil {
		return err
	}

	result, err := sim.Sweep(ctx)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	fmt.Fprintf(out, "%d\n", result.Max)

	if top := int(cmd.Int("top")); top > 0 {
		entries := append([]engine.EntryResult(nil), result.Entries...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Count > entries[j].Count
		})
		if top < len(entries) {
			entries = entries[:top]
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%-22s %d\n", e.Entry, e.Count)
		}
	}

	logrus.WithFields(logrus.Fields{
		"best": result.Best.String(),
		"runs": result.Runs,
	}).Debug("Sweep complete")
	return nil
}
