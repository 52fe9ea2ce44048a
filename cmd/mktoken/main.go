// Package main mints a bearer token for local development and manual API
// testing. It signs with the same secret the server loaded, so the output
// works against a locally running instance.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fileops.io/notifyd/internal/api/middleware"
	"fileops.io/notifyd/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mktoken error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	userID := flag.String("user", "demo-user", "subject user ID")
	username := flag.String("name", "demo", "username claim")
	tenantID := flag.String("tenant", "", "tenant ID claim")
	perms := flag.String("perms", "", "comma-separated permissions, e.g. notify:send")
	lifetime := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var permissions []string
	if *perms != "" {
		permissions = strings.Split(*perms, ",")
	}

	token, err := middleware.GenerateToken(middleware.JWTConfig{
		Secret:   cfg.Security.JWTSecret,
		Issuer:   "notifyd",
		Lifetime: *lifetime,
	}, *userID, *username, *tenantID, nil, permissions)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
