package main

import (
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"go-gallery-archiver/cmd/gallery-archiver/cmd"
)

func main() {
	// Credentials and site URLs live in .env; absence is fine when they
	// come from the real environment instead.
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded")
	}

	cmd.Execute()
}
