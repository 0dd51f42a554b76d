package env

import (
	"github.com/joho/godotenv"
)

// LoadEnv reads the local .env file if one exists. Absence is not an error since
// production deployments inject real environment variables.
func LoadEnv() {
	godotenv.Load()
}
