package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/temirov/reposcope/internal/cli"
	"github.com/temirov/reposcope/internal/utils"
)

// main is the entry point for the reposcope command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()
	if loadErr := godotenv.Load(); loadErr != nil && !errors.Is(loadErr, fs.ErrNotExist) {
		loggerInstance.Warn("ignoring unreadable .env file: " + loadErr.Error())
	}
	if applicationExecutionError := cli.Execute(loggerInstance); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
