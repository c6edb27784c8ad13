package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are read in order. Variables already in the environment win, so
// .env.local only fills what .env left unset.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads every env file that exists and returns the ones read.
func loadEnvFiles() []string {
	var loaded []string
	for _, name := range envFiles {
		err := godotenv.Load(name)
		switch {
		case err == nil:
			loaded = append(loaded, name)
		case errors.Is(err, fs.ErrNotExist):
		default:
			slog.Warn("Cannot load environment file", "file", name, "error", err)
		}
	}
	return loaded
}
