package main

import (
	"mc-resource-manager/cmd"
	"mc-resource-manager/logger"

	_ "go.uber.org/automaxprocs/maxprocs"
)

func main() {
	defer logger.Sync() // Ensure logs are flushed on exit
	cmd.Execute()
}
