package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/credstore"
	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/jrsteele09/go-agent-chat/identity/cognito"
	"github.com/jrsteele09/go-agent-chat/identity/localidp"
	"github.com/jrsteele09/go-agent-chat/internal/config"
	"github.com/jrsteele09/go-agent-chat/internal/metrics"
	"github.com/jrsteele09/go-agent-chat/server"
	"github.com/jrsteele09/go-agent-chat/server/loginsession"
	"github.com/jrsteele09/go-agent-chat/token"
	fakeuserrepo "github.com/jrsteele09/go-agent-chat/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
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
			log.Error().Msgf("Recovered from panic: %v\n%s", r, debug.Stack())
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, closeDeps, err := buildDependencies(ctx, c)
	if err != nil {
		return err
	}
	defer closeDeps()

	s, err := server.New(c, deps)
	if err != nil {
		return err
	}
	defer s.Close()
	go s.Run(ctx)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: s}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func buildDependencies(ctx context.Context, c config.Config) (server.Dependencies, func(), error) {
	provider, err := newIdentityProvider(ctx, c)
	if err != nil {
		return server.Dependencies{}, nil, err
	}

	backend, closeBackend, err := newCredentialBackend(c)
	if err != nil {
		return server.Dependencies{}, nil, err
	}

	var loginSessions loginsession.Repo = loginsession.NewInMemoryRepo()
	if c.GetSessionStore() == config.SessionStoreRedis {
		loginSessions = loginsession.NewBackendRepo(backend)
	}

	var chatBackend chat.Backend = chat.NewSimulated(c.GetChatReplyDelay())
	if url := c.GetChatBackendURL(); url != "" {
		chatBackend = chat.NewHTTPBackend(url, nil)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return server.Dependencies{
		Provider:      provider,
		LoginSessions: loginSessions,
		Credentials:   credstore.NewStore(backend, c.GetPendingSSOTTL()),
		ChatBackend:   chatBackend,
		Metrics:       metrics.NewCollector(registry),
		Gatherer:      registry,
	}, closeBackend, nil
}

func newIdentityProvider(ctx context.Context, c config.Config) (identity.Provider, error) {
	if c.GetIdentityProvider() == config.IdentityProviderCognito {
		return cognito.New(ctx, cognito.Config{
			UserPoolID:   c.GetCognitoUserPoolID(),
			ClientID:     c.GetCognitoClientID(),
			ClientSecret: c.GetCognitoClientSecret(),
			Region:       c.GetCognitoRegion(),
		})
	}

	secret := c.GetLocalIdPSecret()
	if secret == "" {
		if !c.IsDev() {
			return nil, errors.New("LOCAL_IDP_SECRET is required outside DEV")
		}
		secret = "dev-only-local-idp-secret"
		log.Warn().Msg("LOCAL_IDP_SECRET not set, using the development secret")
	}
	issuer := token.NewIssuer(c.GetLocalIdPIssuer(), c.GetAppName(), token.NewHMACSigner(secret))

	var sender localidp.CodeSender = localidp.LogCodeSender{}
	if c.GetSmtpAccount() != "" {
		sender = localidp.NewSMTPCodeSender(localidp.SMTPConfig{
			Host:     c.GetSmtpHost(),
			Port:     strconv.Itoa(c.GetSmtpPort()),
			Username: c.GetSmtpAccount(),
			Password: c.GetSmtpPassword(),
		})
	}
	log.Info().Msg("Using the local identity provider with an in-memory user store")
	return localidp.New(fakeuserrepo.NewFakeUserRepo(), issuer, token.NewInMemoryRevokedTokenCache(), localidp.WithCodeSender(sender)), nil
}

func newCredentialBackend(c config.Config) (credstore.Backend, func(), error) {
	var backend credstore.Backend = credstore.NewMemoryBackend()
	closeFn := func() {}

	if c.GetSessionStore() == config.SessionStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		backend = credstore.NewRedisBackend(client, "agentchat:")
		closeFn = func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close redis client")
			}
		}
	}

	if encoded := c.GetSecretSealKey(); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("SECRET_SEAL_KEY: %w", err)
		}
		sealed, err := credstore.NewSealedBackend(backend, key)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		backend = sealed
	}
	return backend, closeFn, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
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
