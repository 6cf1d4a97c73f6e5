package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gistdeck/gistdeck/auth"
	"github.com/gistdeck/gistdeck/auth/attempts"
	"github.com/gistdeck/gistdeck/auth/sessions"
	"github.com/gistdeck/gistdeck/githubapi"
	"github.com/gistdeck/gistdeck/internal/config"
	"github.com/gistdeck/gistdeck/server"
	"github.com/gistdeck/gistdeck/token"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	srv, cleanup, err := buildServer(c)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config) (*server.Server, func(), error) {
	repos, pinger, cleanup, err := buildRepos(c)
	if err != nil {
		return nil, cleanup, err
	}

	provider := githubapi.NewClient(c)

	authService, err := auth.NewAuthService(repos, provider, c)
	if err != nil {
		return nil, cleanup, errors.Wrap(err, "[buildServer] auth service")
	}

	codec, err := buildCookieCodec(c)
	if err != nil {
		return nil, cleanup, err
	}

	var options []server.ServerOption
	if pinger != nil {
		options = append(options, server.WithPinger(pinger))
	}

	srv, err := server.New(c, authService, provider, codec, options...)
	if err != nil {
		return nil, cleanup, errors.Wrap(err, "[buildServer] server")
	}

	startSweeper(authService, c.GetSweepInterval())

	return srv, cleanup, nil
}

// buildRepos selects Redis-backed stores when REDIS_URL is set, otherwise
// the in-memory stores. In-memory is fine for a single instance; Redis is
// what lets multiple instances share sessions.
func buildRepos(c config.Config) (auth.Repos, server.Pinger, func(), error) {
	noop := func() {}

	redisURL := c.GetRedisURL()
	if redisURL == "" {
		log.Info().Msg("using in-memory session and attempt stores")
		return auth.Repos{
			Attempts: attempts.NewInMemoryRepo(),
			Sessions: sessions.NewInMemoryRepo(),
		}, nil, noop, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return auth.Repos{}, nil, noop, errors.Wrap(err, "[buildRepos] parse REDIS_URL")
	}
	client := redis.NewClient(opts)

	attemptRepo, err := attempts.NewRedisRepo(client, c.GetAttemptTTL())
	if err != nil {
		return auth.Repos{}, nil, noop, errors.Wrap(err, "[buildRepos] attempt store")
	}
	sessionRepo, err := sessions.NewRedisRepo(client)
	if err != nil {
		return auth.Repos{}, nil, noop, errors.Wrap(err, "[buildRepos] session store")
	}

	log.Info().Msg("using Redis session and attempt stores")
	pinger := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	cleanup := func() { _ = client.Close() }
	return auth.Repos{Attempts: attemptRepo, Sessions: sessionRepo}, pinger, cleanup, nil
}

// buildCookieCodec requires a configured signing key outside development.
// In DEV an ephemeral key is generated so the server still starts, at the
// cost of sessions not surviving a restart.
func buildCookieCodec(c config.Config) (*token.CookieCodec, error) {
	key := c.GetSessionSigningKey()
	if len(key) == 0 {
		if c.GetEnv() != "DEV" {
			return nil, errors.New("[buildCookieCodec] SESSION_SIGNING_KEY is required outside DEV")
		}
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrap(err, "[buildCookieCodec] generate ephemeral key")
		}
		log.Warn().Msg("SESSION_SIGNING_KEY not set, using an ephemeral key; sessions will not survive restarts")
	}
	return token.NewCookieCodec(key, c.GetSessionTTL())
}

// startSweeper periodically evicts expired sessions and abandoned login
// attempts so the stores cannot grow without bound.
func startSweeper(authService *auth.AuthService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := authService.SweepExpired(ctx); err != nil {
				log.Error().Err(err).Msg("sweeping expired auth state")
			}
			cancel()
		}
	}()
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
