package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/dashboard"
	"github.com/jaakkos/dao-ledger/internal/events"
	"github.com/jaakkos/dao-ledger/internal/policy"
	"github.com/jaakkos/dao-ledger/internal/tools/ledger"
)

const logPrefix = "[dao-ledger] "

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	StateFile string
	HTTPPort  int
	NoStdio   bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts, HTTPPort: -1}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over MCP (stdio and HTTP)",
		Long: `Serve the ledger over MCP on stdio. When an HTTP port is configured the same
tools are served at /mcp (streamable HTTP) next to the dashboard, its JSON API
and a /health endpoint.

Committed changes are published to the configured AMQP queue and Redis
tally mirror, and pushed to connected MCP clients as
notifications/ledger_update.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	cmd.Flags().StringVar(&opts.StateFile, "state-file", "", "SQLite state file (overrides config)")
	cmd.Flags().IntVar(&opts.HTTPPort, "http-port", -1, "HTTP port; 0 picks a free port (overrides config)")
	cmd.Flags().BoolVar(&opts.NoStdio, "no-stdio", false, "serve HTTP only and run until signalled")
	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.HTTPPort >= 0 {
		cfg.HTTPPort = opts.HTTPPort
	}
	pol := policy.New(cfg)
	if opts.StateFile != "" {
		pol.SetStateFile(opts.StateFile)
	}
	// An explicit --http-port 0 asks for a free port rather than disabling HTTP.
	httpEnabled := cfg.HTTPPort > 0 || opts.HTTPPort == 0
	if opts.NoStdio && !httpEnabled {
		return NewExitError(ExitCommandError, "--no-stdio needs an HTTP port")
	}

	logger := setupLogger(pol.LogFile())
	logger.Println("Starting DAO ledger server...")
	logger.Printf("Log file: %s", pol.LogFile())
	logger.Printf("Storage: %s", pol.Storage().Driver)

	l, err := openLedger(pol, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer l.Close(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ignore SIGHUP so the server keeps running when daemonized (nohup, launchd, etc.)
	signal.Ignore(syscall.SIGHUP)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	mcpServer := newMCPServer(l.svc, pol, logger)

	var hub *dashboard.Hub
	if httpEnabled {
		hub = dashboard.NewHub(logger)
		go hub.Run(ctx)
	}

	fanout, closeSinks := buildPublisher(ctx, pol.Events(), l.svc, logger)
	defer closeSinks()
	if hub != nil {
		fanout.Add(hub)
	}
	if fanout.Len() > 0 {
		l.svc.SetPublisher(fanout)
		logger.Printf("Publishing ledger events to %d sink(s)", fanout.Len())
	}

	notifier := app.NewNotifier(pol.SignalFilePath(), l.svc.Summary, func(method string, params any) error {
		mcpServer.SendNotificationToAllClients(method, map[string]any{"params": params})
		return nil
	}, logger)
	l.store.SetNotifier(notifier)
	go notifier.Start(ctx)
	defer notifier.Stop()

	httpShutdown := func() {}
	if httpEnabled {
		httpShutdown, err = startHTTPServer(mcpServer, l.svc, hub, cfg.HTTPPort, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "start HTTP server", err)
		}
	}
	defer httpShutdown()

	if opts.NoStdio {
		logger.Println("Stdio disabled; serving HTTP until signalled")
		<-ctx.Done()
	} else {
		logger.Println("Stdio ready")
		stdioSrv := server.NewStdioServer(mcpServer)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Stdio server stopped: %v", err)
		}
	}

	cancel()
	logger.Println("Server stopped")
	return nil
}

// newMCPServer builds the MCP server with the ledger tools enabled by policy.
func newMCPServer(svc *app.VotingService, pol *policy.Policy, logger *log.Logger) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Printf("Calling tool: %s", message.Params.Name)
		}
	})
	hooks.AddBeforeInitialize(func(ctx context.Context, id any, message *mcp.InitializeRequest) {
		if message != nil {
			ci := message.Params.ClientInfo
			logger.Printf("Client: %s %s, Protocol: %s", ci.Name, ci.Version, message.Params.ProtocolVersion)
		}
	})

	mcpServer := server.NewMCPServer(
		"dao-ledger",
		Version,
		server.WithInstructions(ledger.InstructionsText()),
		server.WithHooks(hooks),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, true), // subscribe=false, listChanged=true
	)
	ledger.Register(mcpServer, svc, logger, ledger.WithToolFilter(pol.IsToolEnabled))
	return mcpServer
}

// buildPublisher connects the configured event sinks. Sinks that cannot be
// reached are skipped with a warning; the ledger keeps working without them.
func buildPublisher(ctx context.Context, cfg policy.EventsConfig, svc *app.VotingService, logger *log.Logger) (*events.Fanout, func()) {
	fanout := events.NewFanout()
	var closers []io.Closer

	if cfg.AMQPURL != "" {
		pub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue, 3, 2*time.Second, logger)
		if err != nil {
			logger.Printf("Warning: AMQP events disabled: %v", err)
		} else {
			fanout.Add(pub)
			closers = append(closers, pub)
			logger.Printf("AMQP events: queue %s", cfg.AMQPQueue)
		}
	}

	if cfg.RedisAddr != "" {
		client, err := events.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Printf("Warning: Redis tally mirror disabled: %v", err)
		} else {
			mirror := events.NewRedisTallyMirror(client, cfg.RedisKey)
			counts, rev := svc.VoteCountsAt()
			if err := mirror.Sync(ctx, counts, rev); err != nil {
				logger.Printf("Warning: initial Redis tally sync: %v", err)
			}
			fanout.Add(mirror)
			closers = append(closers, client)
			logger.Printf("Redis tally mirror: %s key %s", cfg.RedisAddr, cfg.RedisKey)
		}
	}

	return fanout, func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Printf("Warning: close event sink: %v", err)
			}
		}
	}
}

// startHTTPServer serves /mcp, /health and the dashboard in the background and
// returns a shutdown function. Port 0 picks a free port.
func startHTTPServer(mcpServer *server.MCPServer, svc *app.VotingService, hub *dashboard.Hub, port int, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("HTTP listen: %w", err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://localhost:%d", actualPort)

	logger.Printf("HTTP server on :%d", actualPort)
	logger.Printf("  MCP clients connect at:  %s/mcp", baseURL)
	logger.Printf("  Dashboard:               %s/dashboard", baseURL)

	gin.SetMode(gin.ReleaseMode)
	router := dashboard.NewRouter(dashboard.NewHandler(svc, dashboard.WithHub(hub), dashboard.WithLogger(logger)), logger)
	router.Any("/mcp", gin.WrapH(server.NewStreamableHTTPServer(mcpServer)))
	router.GET("/health", healthHandler(svc, actualPort))

	httpServer := &http.Server{Handler: router}
	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}, nil
}

func healthHandler(svc *app.VotingService, port int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"port":     port,
			"revision": svc.Store().Revision(),
		})
	}
}

// setupLogger creates a logger that writes to a log file and optionally stderr.
// When stderr is a terminal, logs go to both stderr and the file. When stderr
// is redirected (daemon mode via nohup), logs go only to the file.
func setupLogger(logFilePath string) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else {
				fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	// Always keep at least one output.
	if stderrIsTerminal || !hasLogFile {
		writers = append(writers, os.Stderr)
	}

	return log.New(io.MultiWriter(writers...), logPrefix, log.LstdFlags|log.Lshortfile)
}
