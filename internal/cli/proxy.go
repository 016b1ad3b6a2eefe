package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// ProxyOptions holds flags for the proxy command.
type ProxyOptions struct {
	*RootOptions
	URL string
}

// NewProxyCommand creates the proxy command.
func NewProxyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProxyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Bridge stdio MCP to a running ledger server",
		Long: `Bridge a stdio MCP client to the streamable HTTP endpoint of a ledger server
started with "dao-ledger serve --no-stdio", so several clients share one ledger.

Examples:
  dao-ledger proxy --url http://localhost:8943/mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			logger := log.New(cmd.ErrOrStderr(), logPrefix, log.LstdFlags)
			b := newBridge(opts.URL, http.DefaultClient, cmd.OutOrStdout(), logger)
			if err := b.run(ctx, cmd.InOrStdin()); err != nil {
				return WrapExitError(ExitFailure, "proxy", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "http://localhost:8943/mcp", "streamable HTTP endpoint of the ledger server")
	return cmd
}

// bridge relays newline-delimited JSON-RPC between stdio and one MCP
// session on the server's streamable HTTP endpoint.
type bridge struct {
	endpoint  string
	client    *http.Client
	logger    *log.Logger
	out       io.Writer
	writeMu   sync.Mutex
	sessionID string
	sseCancel context.CancelFunc
}

func newBridge(endpoint string, client *http.Client, out io.Writer, logger *log.Logger) *bridge {
	return &bridge{endpoint: endpoint, client: client, out: out, logger: logger}
}

// run forwards every stdin line until EOF, then closes the session.
func (b *bridge) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := b.forward(ctx, line); err != nil {
			b.closeSession(ctx)
			return err
		}
	}
	b.closeSession(ctx)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

// forward posts one JSON-RPC message and relays the response.
func (b *bridge) forward(ctx context.Context, msg []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(msg))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if b.sessionID != "" {
		req.Header.Set("Mcp-Session-Id", b.sessionID)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("server request: %w", err)
	}
	defer resp.Body.Close()

	// The initialize response carries the session id.
	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" && b.sessionID == "" {
		b.sessionID = sid
		b.logger.Printf("Proxy: session established: %s", sid)
		b.startNotificationStream(ctx)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "text/event-stream"):
		return b.relaySSE(resp.Body)
	case strings.HasPrefix(contentType, "application/json"):
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if data = bytes.TrimSpace(data); len(data) == 0 {
			return nil
		}
		return b.write(data)
	case resp.StatusCode == http.StatusAccepted:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		if len(body) > 0 {
			return b.write(body)
		}
		return nil
	}
}

// relaySSE writes the data of every server-sent event as one line.
func (b *bridge) relaySSE(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok && data != "" {
			if err := b.write([]byte(data)); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

// startNotificationStream opens the GET stream that carries server pushes
// such as notifications/ledger_update.
func (b *bridge) startNotificationStream(ctx context.Context) {
	sseCtx, sseCancel := context.WithCancel(ctx)
	b.sseCancel = sseCancel

	go func() {
		defer sseCancel()

		req, err := http.NewRequestWithContext(sseCtx, http.MethodGet, b.endpoint, nil)
		if err != nil {
			b.logger.Printf("Proxy SSE: create request: %v", err)
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Mcp-Session-Id", b.sessionID)

		resp, err := b.client.Do(req)
		if err != nil {
			if sseCtx.Err() == nil {
				b.logger.Printf("Proxy SSE: connect: %v", err)
			}
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b.logger.Printf("Proxy SSE: unexpected status %d", resp.StatusCode)
			return
		}
		if err := b.relaySSE(resp.Body); err != nil && sseCtx.Err() == nil {
			b.logger.Printf("Proxy SSE: %v", err)
		}
	}()
}

// closeSession stops the notification stream and deletes the session.
func (b *bridge) closeSession(ctx context.Context) {
	if b.sseCancel != nil {
		b.sseCancel()
	}
	if b.sessionID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.endpoint, nil)
	if err != nil {
		return
	}
	req.Header.Set("Mcp-Session-Id", b.sessionID)
	resp, err := b.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// write emits one newline-terminated line; safe for concurrent use.
func (b *bridge) write(data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := b.out.Write(data); err != nil {
		return err
	}
	_, err := b.out.Write([]byte("\n"))
	return err
}
