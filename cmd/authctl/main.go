package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/authkit/internal/authctl"
	"github.com/joho/godotenv"
)

func main() {
	// keys may come from a local .env; a missing file is fine
	_ = godotenv.Load()

	os.Exit(authctl.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
