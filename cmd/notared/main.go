package main

import (
	"log"
	"os"

	"github.com/notare-app/notare/internal/server"
)

func main() {
	addr := os.Getenv("NOTARE_HTTP_ADDR")
	if addr == "" {
		addr = ":10040"
	}

	if err := server.Run(os.Getenv("NOTARE_CONFIG"), addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
