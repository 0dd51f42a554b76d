package main

import (
	"biolock.io/infrastructure"
	"biolock.io/infrastructure/env"
	startup "biolock.io/infrastructure/startUp"
)

func init() {
	env.LoadEnv()
}

func main() {
	startup.StartServices()
	defer startup.CleanUpServices()
	infrastructure.StartWorkers()
}
