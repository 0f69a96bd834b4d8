// console connects a chat session and streams reconciled state to stdout.
// Usage: go run ./cmd/console --config configs/console.example.yaml --user agent-1
//
// The master credential is injected via environment expansion in the config
// file (e.g. CHATLINK_MASTER_KEY), never typed by the end user.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/chatlink/internal/archive"
	"github.com/agentdesk/chatlink/internal/auth"
	"github.com/agentdesk/chatlink/internal/config"
	"github.com/agentdesk/chatlink/internal/database"
	"github.com/agentdesk/chatlink/internal/model"
	"github.com/agentdesk/chatlink/internal/protocol"
	"github.com/agentdesk/chatlink/internal/session"
	"github.com/agentdesk/chatlink/internal/state"
	"github.com/agentdesk/chatlink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/console.example.yaml", "path to config file")
	userID := flag.String("user", "", "subject id (defaults to a generated id)")
	displayName := flag.String("name", "", "display name (defaults to the subject id)")
	signOut := flag.Bool("sign-out", false, "clear the cached credential and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting console",
		"version", version.String(),
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	subject := *userID
	if subject == "" {
		subject = "agent-" + uuid.NewString()[:8]
	}
	name := *displayName
	if name == "" {
		name = subject
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Credential cache: badger when a path is configured, in-memory otherwise.
	var credStore auth.Store
	if cfg.Cache.Path != "" {
		bs, err := auth.OpenBadgerStore(cfg.Cache.Path)
		if err != nil {
			logger.Error("failed to open credential cache", "error", err)
			os.Exit(1)
		}
		defer bs.Close()
		credStore = bs
	} else {
		credStore = auth.NewMemoryStore()
	}

	if *signOut {
		if err := credStore.Clear(subject); err != nil {
			logger.Error("failed to clear credential", "error", err)
			os.Exit(1)
		}
		logger.Info("credential cleared", "subject_id", subject)
		return
	}

	cred, err := obtainCredential(ctx, cfg, credStore, subject, name, logger)
	if err != nil {
		logger.Error("credential exchange failed", "error", err)
		os.Exit(1)
	}

	store := state.NewStore(logger)
	sess := session.New(session.Config{
		WSURL:             cfg.Realtime.WSURL,
		Dialect:           protocol.Dialect(cfg.Realtime.Dialect),
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		KeepAliveInterval: cfg.Realtime.KeepAliveInterval,
		HandshakeTimeout:  cfg.Realtime.HandshakeTimeout,
		WriteTimeout:      cfg.Realtime.WriteTimeout,
		StaleTimeout:      cfg.Realtime.StaleTimeout,
		BufferSize:        cfg.Realtime.BufferSize,
		HistoryLimit:      cfg.Realtime.HistoryLimit,
	}, cred, store, logger)

	// Optional transcript archiver consuming the session's message feed.
	if cfg.Archive.Enabled {
		pool, err := database.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			logger.Error("failed to connect archive database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		writer := archive.NewWriter(archive.Config{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, sess.Messages(), pool, logger)
		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start transcript writer", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			writer.Stop(stopCtx)
		}()
	}

	// Subscribe once, before connecting; the archiver holds its own
	// subscription so neither consumer steals the other's messages.
	feed := sess.Messages()

	if err := sess.Connect(ctx); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer sess.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return

		case st := <-sess.StateChanges():
			logger.Info("state", "state", st)

		case n := <-sess.Notices():
			switch n.Kind {
			case session.NoticeConnectError:
				// Rejected credential: drop the cache so the next run
				// re-authenticates.
				logger.Error("credential rejected", "reason", n.Reason)
				if err := credStore.Clear(subject); err != nil {
					logger.Warn("failed to clear credential", "error", err)
				}
				os.Exit(1)
			default:
				logger.Info("notice", "kind", n.Kind, "reason", n.Reason)
			}

		case msg := <-feed:
			logger.Info("message",
				"container_id", msg.ContainerID,
				"sender", msg.SenderDisplayName,
				"content", msg.Content,
				"edited", msg.Edited,
				"deleted", msg.Deleted,
			)
		}
	}
}

// obtainCredential returns the cached credential for the subject or performs
// a fresh exchange and caches the result.
func obtainCredential(
	ctx context.Context,
	cfg *config.ConsoleConfig,
	store auth.Store,
	subject, name string,
	logger *slog.Logger,
) (model.Credential, error) {
	if cred, ok, err := store.Get(subject); err != nil {
		return model.Credential{}, err
	} else if ok && cred.Valid() {
		logger.Info("using cached credential", "subject_id", subject)
		return cred, nil
	}

	broker := auth.NewBroker(cfg.Auth.RestURL, cfg.Auth.MasterKey,
		auth.WithTimeout(cfg.Auth.Timeout),
		auth.WithLogger(logger),
	)
	cred, err := broker.Authenticate(ctx, subject, name)
	if err != nil {
		return model.Credential{}, err
	}

	if err := store.Put(cred); err != nil {
		logger.Warn("failed to cache credential", "error", err)
	}
	return cred, nil
}
