// chatd - multi-provider LLM chat daemon.
// Runs an interactive console by default; -serve starts the HTTP/MCP API.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/chatd/internal/api"
	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
	"github.com/matiasleandrokruk/chatd/internal/infra/config"
	"github.com/matiasleandrokruk/chatd/internal/infra/eventbus"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
	"github.com/matiasleandrokruk/chatd/internal/infra/sqlite"
	"github.com/matiasleandrokruk/chatd/internal/server"
	"github.com/matiasleandrokruk/chatd/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("chatd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config", "", "Path to the YAML configuration file")
	dbPath := fs.String("db", "chatd.db", "Path to the SQLite history database")
	serve := fs.Bool("serve", false, "Start the HTTP/MCP server instead of the console")
	host := fs.String("host", "0.0.0.0", "HTTP listen host (with -serve)")
	port := fs.Int("port", 8080, "HTTP listen port (with -serve)")
	debug := fs.Bool("debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(out, "invalid arguments:", err) //nolint:errcheck
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	setupLogging(*debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := bootstrap(ctx, *configPath, *dbPath)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return 1
	}

	if *serve {
		return runServer(ctx, deps, *host, *port)
	}

	return runConsole(ctx, deps.Coordinator, deps.Factory, os.Stdin, out)
}

// setupLogging configures zerolog: human-readable console output, Unix
// timestamps, level from the debug flag.
func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// bootstrap loads configuration and wires the shared application services:
// one coordinator, one factory, one event bus, one history store.
func bootstrap(ctx context.Context, configPath, dbPath string) (api.Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return api.Deps{}, err
	}

	db, err := sqlite.NewDB(dbPath)
	if err != nil {
		return api.Deps{}, err
	}
	if err := sqlite.MigrateUp(db); err != nil {
		return api.Deps{}, err
	}

	bus := eventbus.New()
	factory := llm.NewFactory(cfg)
	coordinator := chat.NewCoordinatorWithBus(factory, cfg, bus)

	store := chat.NewStore(db)
	go store.Start(ctx, bus)

	return api.Deps{
		DB:          db,
		Coordinator: coordinator,
		Factory:     factory,
		Store:       store,
	}, nil
}

// runServer starts the HTTP server and blocks until SIGINT/SIGTERM.
func runServer(ctx context.Context, deps api.Deps, host string, port int) int {
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srv := server.NewServer(deps, srvCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			return 1
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
			return 1
		}
	}
	return 0
}

func printHelp(out io.Writer) {
	helpText := `chatd - multi-provider LLM chat daemon

Usage:
  chatd [options]

Options:
  --version    Show version information
  --help       Show this help message
  --config     Path to the YAML configuration file
  --db         Path to the SQLite history database (default chatd.db)
  --serve      Start the HTTP/MCP server instead of the console
  --host       HTTP listen host (default 0.0.0.0)
  --port       HTTP listen port (default 8080)
  --debug      Enable debug logging

Examples:
  chatd --config chatd.yaml
  chatd --config chatd.yaml --serve --port 8080
  chatd --version`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
