// Package utils provides logging, version and formatting helpers shared by reposcope packages.
package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const (
	unknownVersion     = "unknown"
	develBuildVersion  = "(devel)"
	gitExecutableName  = "git"
	gitDescribeCommand = "describe"
)

// Version is injected at build time with -ldflags "-X github.com/temirov/reposcope/internal/utils.Version=...".
var Version = EmptyString

// GetApplicationVersion resolves the application version.
// The injected Version wins, then Go build info, then git describe in the enclosing checkout.
func GetApplicationVersion() string {
	if strings.TrimSpace(Version) != EmptyString {
		return strings.TrimSpace(Version)
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if buildInfoAvailable && buildInfo.Main.Version != EmptyString && buildInfo.Main.Version != develBuildVersion {
		return buildInfo.Main.Version
	}

	checkoutDirectory, lookupError := findCheckoutDirectory(".")
	if lookupError != nil {
		return unknownVersion
	}
	describeArguments := [][]string{
		{gitDescribeCommand, "--tags", "--exact-match"},
		{gitDescribeCommand, "--tags", "--long", "--dirty"},
	}
	for _, arguments := range describeArguments {
		// #nosec G204
		describe := exec.Command(gitExecutableName, arguments...)
		describe.Dir = checkoutDirectory
		describeOutput, describeError := describe.Output()
		if describeError == nil && len(describeOutput) > 0 {
			return strings.TrimSpace(string(describeOutput))
		}
	}
	return unknownVersion
}

// findCheckoutDirectory walks upward from startDirectory until it finds a directory holding .git.
func findCheckoutDirectory(startDirectory string) (string, error) {
	absoluteStartDirectory, absoluteError := filepath.Abs(startDirectory)
	if absoluteError != nil {
		return EmptyString, fmt.Errorf("failed to get absolute path for %s: %w", startDirectory, absoluteError)
	}
	currentDirectory := absoluteStartDirectory
	for {
		fileInformation, statError := os.Stat(filepath.Join(currentDirectory, GitDirectoryName))
		if statError == nil && fileInformation.IsDir() {
			return currentDirectory, nil
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			break
		}
		currentDirectory = parentDirectory
	}
	return EmptyString, fmt.Errorf(".git directory not found in or above %s", absoluteStartDirectory)
}
