package env

import (
	"os"

	"github.com/joho/godotenv"
)

// SetupEnvFile loads the first .env file found into the process
// environment. Variables already set in the environment are kept, so Docker
// and test overrides win over the file. A missing file is not an error.
func SetupEnvFile() string {
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/comanda-billing to project root
		"../../../.env", // Fallback for deeper nesting
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err == nil {
			return envFile
		}
	}
	return ""
}

func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
