// logintest exercises the credential exchange endpoint and prints the
// issued credential. Useful for verifying the master key and REST base URL
// before wiring up a full session.
// Usage: go run ./cmd/logintest --config configs/console.example.yaml --user agent-1
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/agentdesk/chatlink/internal/auth"
	"github.com/agentdesk/chatlink/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/console.example.yaml", "path to config file")
	userID := flag.String("user", "logintest", "subject id to authenticate")
	displayName := flag.String("name", "", "display name (defaults to the subject id)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	name := *displayName
	if name == "" {
		name = *userID
	}

	broker := auth.NewBroker(cfg.Auth.RestURL, cfg.Auth.MasterKey,
		auth.WithTimeout(cfg.Auth.Timeout),
		auth.WithLogger(logger),
	)

	cred, err := broker.Authenticate(context.Background(), *userID, name)
	if err != nil {
		logger.Error("credential exchange failed", "error", err)
		os.Exit(1)
	}

	logger.Info("credential issued",
		"subject_id", cred.SubjectID,
		"display_name", cred.DisplayName,
		"token_len", len(cred.AccessToken),
	)
}
