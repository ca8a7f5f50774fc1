package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/vakeel-labs/vakeel/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		log.Printf("[MAIN] %v", err)
		os.Exit(1)
	}
}
