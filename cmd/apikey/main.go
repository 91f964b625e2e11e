// Package main is the API key CLI: it issues, lists and revokes the keys that guard the
// roster write endpoints.
//
// Usage:
//
//	apikey create -name nightly-loader -permissions loads:write,views:refresh [-ttl 2160h]
//	apikey list
//	apikey revoke -id <key id>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/correlator-io/roster/internal/config"
	"github.com/correlator-io/roster/internal/storage"
)

const usage = "usage: apikey create -name <name> -permissions <list> [-ttl <duration>] | list | revoke -id <id>"

var errUsage = errors.New(usage)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], logger); err != nil {
		logger.Error("API key command failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logger *slog.Logger) error {
	conn, err := storage.NewConnection(storage.LoadConfig())
	if err != nil {
		return err
	}

	defer func() { _ = conn.Close() }()

	store, err := storage.NewKeyStore(conn, logger)
	if err != nil {
		return err
	}

	return execute(ctx, store, args, os.Stdout)
}

// execute runs one subcommand against store and writes its JSON result to out.
// A created key is the only time the plaintext is printed.
func execute(ctx context.Context, store storage.APIKeyStore, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	var (
		result any
		err    error
	)

	switch args[0] {
	case "create":
		result, err = create(ctx, store, args[1:])
	case "list":
		result, err = store.List(ctx)
	case "revoke":
		result, err = revoke(ctx, store, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func create(ctx context.Context, store storage.APIKeyStore, args []string) (*storage.APIKey, error) {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	keyName := fs.String("name", "", "name of the key owner, e.g. the loader job")
	permissions := fs.String("permissions", storage.PermissionLoadsWrite, "comma-separated permissions")
	ttl := fs.Duration("ttl", 0, "key lifetime, 0 for no expiry")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	key, err := storage.GenerateAPIKey(*keyName, splitPermissions(*permissions), *ttl)
	if err != nil {
		return nil, err
	}

	if err := store.Add(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

type revoked struct {
	ID        string    `json:"id"`
	RevokedAt time.Time `json:"revoked_at"`
}

func revoke(ctx context.Context, store storage.APIKeyStore, args []string) (*revoked, error) {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	keyID := fs.String("id", "", "id of the key to revoke")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	if *keyID == "" {
		return nil, errUsage
	}

	if err := store.Delete(ctx, *keyID); err != nil {
		return nil, err
	}

	return &revoked{ID: *keyID, RevokedAt: time.Now().UTC()}, nil
}

func splitPermissions(list string) []string {
	permissions := []string{}

	for p := range strings.SplitSeq(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	return permissions
}
