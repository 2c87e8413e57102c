// Command caldav-mcp-admin manages users and MCP access tokens. There
// is no admin HTTP surface; provisioning goes through this tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sonroyaalmerol/caldav-mcp/internal/auth"
	"github.com/sonroyaalmerol/caldav-mcp/internal/config"
	"github.com/sonroyaalmerol/caldav-mcp/internal/httpserver"
	"github.com/sonroyaalmerol/caldav-mcp/internal/logging"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

const usage = `usage: caldav-mcp-admin <command> [flags]

commands:
  create-user    -username <name> -password <pw> [-email <addr>]
  reset-password -username <name> -password <pw>
  list-users
  create-token   -username <name> [-name <label>]
  list-tokens    -username <name>
  delete-token   -id <token-id>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	store, err := httpserver.OpenStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage init: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "create-user":
		createUser(ctx, store, os.Args[2:])
	case "reset-password":
		resetPassword(ctx, store, os.Args[2:])
	case "list-users":
		listUsers(ctx, store)
	case "create-token":
		createToken(ctx, store, os.Args[2:])
	case "list-tokens":
		listTokens(ctx, store, os.Args[2:])
	case "delete-token":
		deleteToken(ctx, store, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func createUser(ctx context.Context, store storage.Store, args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	password := fs.String("password", "", "password (required)")
	email := fs.String("email", "", "email address (optional)")
	_ = fs.Parse(args)

	if *username == "" || *password == "" {
		fatal("create-user: -username and -password are required")
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fatal("hash password: %v", err)
	}
	var emailPtr *string
	if *email != "" {
		emailPtr = email
	}
	user, err := store.CreateUser(ctx, *username, emailPtr, hash)
	if err != nil {
		fatal("create user: %v", err)
	}
	fmt.Printf("created user %s (id %s)\n", user.Username, user.ID)
}

func resetPassword(ctx context.Context, store storage.Store, args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	password := fs.String("password", "", "new password (required)")
	_ = fs.Parse(args)

	if *username == "" || *password == "" {
		fatal("reset-password: -username and -password are required")
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fatal("hash password: %v", err)
	}
	if err := store.UpdatePasswordHash(ctx, *username, hash); err != nil {
		fatal("reset password: %v", err)
	}
	fmt.Printf("password updated for %s\n", *username)
}

func listUsers(ctx context.Context, store storage.Store) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		fatal("list users: %v", err)
	}
	for _, u := range users {
		email := ""
		if u.Email != nil {
			email = *u.Email
		}
		fmt.Printf("%s\t%s\t%s\n", u.ID, u.Username, email)
	}
}

func createToken(ctx context.Context, store storage.Store, args []string) {
	fs := flag.NewFlagSet("create-token", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	name := fs.String("name", "default", "token label")
	_ = fs.Parse(args)

	if *username == "" {
		fatal("create-token: -username is required")
	}

	user, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		fatal("lookup user: %v", err)
	}

	raw, hash, err := auth.GenerateToken()
	if err != nil {
		fatal("generate token: %v", err)
	}
	token, err := store.CreateToken(ctx, user.ID, hash, *name)
	if err != nil {
		fatal("store token: %v", err)
	}

	// The raw value is only printed here; the store keeps a hash.
	fmt.Printf("token id: %s\n", token.ID)
	fmt.Printf("token:    %s\n", raw)
}

func listTokens(ctx context.Context, store storage.Store, args []string) {
	fs := flag.NewFlagSet("list-tokens", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	_ = fs.Parse(args)

	if *username == "" {
		fatal("list-tokens: -username is required")
	}

	user, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		fatal("lookup user: %v", err)
	}
	tokens, err := store.ListTokens(ctx, user.ID)
	if err != nil {
		fatal("list tokens: %v", err)
	}
	for _, t := range tokens {
		fmt.Printf("%s\t%s\t%s\n", t.ID, t.Name, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func deleteToken(ctx context.Context, store storage.Store, args []string) {
	fs := flag.NewFlagSet("delete-token", flag.ExitOnError)
	id := fs.String("id", "", "token id (required)")
	_ = fs.Parse(args)

	if *id == "" {
		fatal("delete-token: -id is required")
	}
	if err := store.DeleteToken(ctx, *id); err != nil {
		fatal("delete token: %v", err)
	}
	fmt.Println("token deleted")
}
