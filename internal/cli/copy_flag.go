package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/temirov/reposcope/internal/bot"
)

const (
	copyFlagName        = "copy"
	copyFlagDescription = "copy the reply to the clipboard"
	copyFlagOption      = "--" + copyFlagName
	copyFlagTrue        = "true"
	copyFlagFalse       = "false"
	errorCopyFlagValue  = "invalid copy flag value '%s'"
)

// parseCopyLiteral reads the boolean spellings accepted after --copy.
// An empty literal means "enabled".
func parseCopyLiteral(input string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "true", "t", "1", "yes", "y":
		return true, true
	case "false", "f", "0", "no", "n":
		return false, true
	}
	return false, false
}

// copyFlagValue is a boolean pflag.Value that also accepts yes/no.
type copyFlagValue struct {
	target *bool
}

func (value *copyFlagValue) Set(input string) error {
	parsed, ok := parseCopyLiteral(input)
	if !ok || value.target == nil {
		return fmt.Errorf(errorCopyFlagValue, input)
	}
	*value.target = parsed
	return nil
}

func (value *copyFlagValue) String() string {
	if value == nil || value.target == nil || !*value.target {
		return copyFlagFalse
	}
	return copyFlagTrue
}

func (value *copyFlagValue) Type() string {
	return "bool"
}

func registerCopyFlag(flagSet *pflag.FlagSet, target *bool) {
	if flagSet == nil || target == nil {
		return
	}
	*target = false
	flagSet.Var(&copyFlagValue{target: target}, copyFlagName, copyFlagDescription)
	flagSet.Lookup(copyFlagName).NoOptDefVal = copyFlagTrue
}

// isSubcommandName reports whether argument names a reposcope subcommand.
func isSubcommandName(argument string) bool {
	normalized := strings.ToLower(strings.TrimSpace(argument))
	if normalized == serveCommandName {
		return true
	}
	for _, info := range bot.Catalog() {
		if info.Name == normalized {
			return true
		}
	}
	return false
}

// normalizeCopyFlagArguments rewrites "--copy <literal>" into "--copy=<bool>"
// so that "--copy no" works while "repo_structure --copy owner/repo" keeps the
// locator as a positional argument.
func normalizeCopyFlagArguments(arguments []string) []string {
	normalized := make([]string, 0, len(arguments))
	subcommandSeen := false
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == "--" {
			return append(normalized, arguments[index:]...)
		}
		if current != copyFlagOption {
			if !subcommandSeen && !strings.HasPrefix(current, "-") && isSubcommandName(current) {
				subcommandSeen = true
			}
			normalized = append(normalized, current)
			continue
		}

		if index+1 >= len(arguments) || strings.HasPrefix(arguments[index+1], "-") {
			normalized = append(normalized, copyFlagOption+"="+copyFlagTrue)
			continue
		}
		next := arguments[index+1]
		if parsed, ok := parseCopyLiteral(next); ok {
			normalized = append(normalized, fmt.Sprintf("%s=%t", copyFlagOption, parsed))
			index++
			continue
		}
		if subcommandSeen || isSubcommandName(next) {
			normalized = append(normalized, current)
			continue
		}
		// Before any subcommand the next word can only be a value.
		normalized = append(normalized, copyFlagOption+"="+next)
		index++
	}
	return normalized
}
