package serve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/soundstage/cmd/common"
	"github.com/gigurra/soundstage/cmd/engine/feed"
	"github.com/gigurra/soundstage/cmd/engine/library"
	"github.com/gigurra/soundstage/cmd/engine/store"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Params struct {
	Sources []string `pos:"true" optional:"true" help:"Audio files, directories, playlists, URLs or sample packs to queue."`
	Addr    string   `short:"a" help:"Address to listen on." default:":8099"`
	QR      bool     `help:"Print a QR code of the feed URL." default:"false"`
	Paused  bool     `help:"Queue the sources without starting playback." default:"false"`

	ReadTimeoutMillis int64 `help:"Maximum duration for reading the entire request, including the body (ms)." default:"5000"`
	IdleTimeoutMillis int64 `help:"Maximum amount of time to wait for the next request when keep-alives are enabled (ms)." default:"120000"`
	MaxHeaderBytes    int   `help:"Maximum number of bytes the server will read parsing the request header's keys and values." default:"1048576"` // 1MB
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:         "serve",
		Short:       "Headless player with an HTTP and websocket feed",
		Long:        "Plays the given sources without a UI and exposes the player state, spectrum snapshots and remote controls over HTTP. State changes are streamed on /ws.",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := Run(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "serve: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func Run(ctx context.Context, params *Params) error {
	env := common.LoadEnv()
	log, err := common.NewLogger(common.LogConfig{Level: env.LogLevel, File: env.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	player, err := common.OpenPlayer(ctx, env, log)
	if err != nil {
		return err
	}
	defer player.Close()

	if len(params.Sources) > 0 {
		tracks, err := library.FromArgs(ctx, params.Sources, library.Options{CacheDir: common.CacheDir(), Logger: log})
		if err != nil {
			return err
		}
		player.Store.SetQueue(tracks, 0)
		if !params.Paused {
			if err := player.Store.TogglePlay(ctx); err != nil {
				log.Warn("could not start playback", zap.Error(err))
			}
		}
	}

	return Serve(ctx, params, player.Store, log, os.Stdout)
}

// Serve runs the feed for s until ctx is done.
func Serve(ctx context.Context, params *Params, s *store.Store, log *zap.Logger, out io.Writer) error {
	if log == nil {
		log = zap.NewNop()
	}
	handler := accessLog(feed.New(s, log), log)

	server := &http.Server{
		Addr:           params.Addr,
		Handler:        handler,
		ReadTimeout:    time.Duration(params.ReadTimeoutMillis) * time.Millisecond,
		IdleTimeout:    time.Duration(params.IdleTimeoutMillis) * time.Millisecond,
		MaxHeaderBytes: params.MaxHeaderBytes,
	}

	ln, err := net.Listen("tcp", params.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", params.Addr, err)
	}
	url := FeedURL(ln.Addr())
	_, _ = fmt.Fprintf(out, "Feed at %s (state stream on %s/ws)\n", url, strings.Replace(url, "http", "ws", 1))
	if params.QR {
		if err := printQR(out, url); err != nil {
			log.Warn("qr code", zap.Error(err))
		}
	}

	// Handle graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-serverErr:
		return err
	}
}

// FeedURL is the address a phone on the same network would use. Wildcard binds
// are reported with the first LAN address.
func FeedURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "localhost"
		if lan := lanIP(); lan != "" {
			host = lan
		}
	}
	return "http://" + net.JoinHostPort(host, port)
}

func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

// printQR draws the code with two-space ANSI blocks, dark modules on white.
func printQR(w io.Writer, text string) error {
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generating qr code: %w", err)
	}
	const (
		dark  = "\033[40m  \033[0m"
		light = "\033[47m  \033[0m"
	)
	var b strings.Builder
	for _, row := range qr.Bitmap() {
		for _, module := range row {
			if module {
				b.WriteString(dark)
			} else {
				b.WriteString(light)
			}
		}
		b.WriteString("\033[0m\n")
	}
	_, err = io.WriteString(w, b.String())
	return err
}

func accessLog(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("request",
			zap.Int("status", rw.status),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
