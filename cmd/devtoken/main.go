// Command devtoken prints an access token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fitclass/internal/auth"
	"fitclass/internal/config"
)

func main() {
	userID := flag.Int("user", 1, "user id")
	role := flag.String("role", auth.RoleClient, "client, coach or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if !auth.ValidRole(*role) {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := auth.GenerateAccessToken(*userID, *role, cfg.JWTSecret, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
