// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/reposcope/internal/app"
	"github.com/temirov/reposcope/internal/bot"
	"github.com/temirov/reposcope/internal/config"
	"github.com/temirov/reposcope/internal/services/clipboard"
	"github.com/temirov/reposcope/internal/utils"
)

const (
	versionFlagName          = "version"
	configFlagName           = "config"
	verboseFlagName          = "verbose"
	outputDirFlagName        = "output-dir"
	globalFlagName           = "global"
	forceFlagName            = "force"
	versionFlagDescription   = "display application version"
	configFlagDescription    = "path to a configuration file replacing ./" + utils.LocalConfigFileName
	verboseFlagDescription   = "enable debug logging"
	outputDirFlagDescription = "directory receiving reply attachments"
	globalFlagDescription    = "write to ~/" + utils.GlobalConfigDirectoryName + "/" + utils.ConfigFileName
	forceFlagDescription     = "overwrite an existing file"
)

const (
	rootUse                    = "reposcope"
	rootShortDescription       = "reposcope command line interface"
	versionTemplate            = "reposcope version: %s\n"
	serveCommandName           = "serve"
	serveShortDescription      = "serve bot commands over HTTP"
	configUse                  = "config"
	configShortDescription     = "manage configuration files"
	configInitUse              = "init"
	configInitShortDescription = "write a configuration template"
	commandShortFormat         = "%s (chat: %s%s)"
)

const rootLongDescription = `reposcope answers questions about GitHub repositories.
Every chat command of the bot is available as a subcommand: repo_structure renders a
directory tree, contributors and commits list repository activity, and wtfisthis,
analyze_file and summarize_file ask an Azure OpenAI deployment for an explanation.
Use serve to expose the same commands over HTTP for a chat platform adapter.`

const rootUsageExample = `  # Render a repository tree
  reposcope repo_structure https://github.com/spf13/cobra

  # Summarize one file and copy the answer
  reposcope summarize_file spf13/cobra command.go --copy`

const serveLongDescription = `Start the HTTP gateway. GET /commands lists commands, POST /commands/{name}
runs one, and POST /messages answers a raw chat message. Stop with Ctrl+C.`

const (
	attachmentWrittenFormat     = "Attachment written to %s (%s)\n"
	configurationWrittenFormat  = "Configuration written to %s\n"
	gatewayListeningFormat      = "Gateway listening on http://%s\n"
	defaultOutputDirectory      = "."
	defaultAuthor               = "cli"
	attachmentFilePermissions   = 0o644
	attachmentDirPermissions    = 0o755
	errorWriteAttachmentFormat  = "write attachment %s: %w"
	errorCopyReplyFormat        = "copy reply to clipboard: %w"
	errorLoadConfigurationFmt   = "load configuration: %w"
	errorInitializeLoggerFormat = "initialize logger: %w"
)

// Dependencies are the process-level collaborators of the command tree.
type Dependencies struct {
	Stdout      io.Writer
	Copier      clipboard.Copier
	Environment config.LookupFunc
	Logger      *zap.Logger
	NewRuntime  func(config.ApplicationConfiguration, *zap.Logger) (*dig.Container, error)
}

func (dependencies Dependencies) normalized() Dependencies {
	if dependencies.Stdout == nil {
		dependencies.Stdout = os.Stdout
	}
	if dependencies.Copier == nil {
		dependencies.Copier = clipboard.NewService()
	}
	if dependencies.Environment == nil {
		dependencies.Environment = os.LookupEnv
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.NewRuntime == nil {
		dependencies.NewRuntime = app.NewContainer
	}
	return dependencies
}

// rootOptions holds persistent flag values.
type rootOptions struct {
	showVersion bool
	configPath  string
	verbose     bool
}

// Execute runs the reposcope application.
func Execute(logger *zap.Logger) error {
	rootCommand := NewRootCommand(Dependencies{Logger: logger})
	rootCommand.SetArgs(normalizeCopyFlagArguments(os.Args[1:]))
	return rootCommand.Execute()
}

// NewRootCommand builds the root Cobra command.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	dependencies = dependencies.normalized()
	options := &rootOptions{}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Example:      rootUsageExample,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if options.showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.SetOut(dependencies.Stdout)
	rootCommand.PersistentFlags().BoolVar(&options.showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().BoolVar(&options.verbose, verboseFlagName, false, verboseFlagDescription)

	for _, info := range bot.Catalog() {
		rootCommand.AddCommand(createBotCommand(info, options, dependencies))
	}
	rootCommand.AddCommand(
		createServeCommand(options, dependencies),
		createConfigCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// createBotCommand exposes one chat command as a subcommand. Positional arguments
// are joined the way a chat message would carry them.
func createBotCommand(info bot.CommandInfo, options *rootOptions, dependencies Dependencies) *cobra.Command {
	var outputDirectory string
	var copyEnabled bool

	botCommand := &cobra.Command{
		Use:   info.Usage,
		Short: fmt.Sprintf(commandShortFormat, info.Description, bot.DefaultPrefix, info.Name),
		Args:  cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			instance, logger, err := resolveBot(options, dependencies)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			reply := instance.Dispatch(command.Context(), bot.Command{
				Name:     info.Name,
				Argument: strings.Join(arguments, " "),
				Author:   currentAuthor(),
			})
			return writeReply(command.OutOrStdout(), reply, outputDirectory, copyEnabled, dependencies.Copier)
		},
	}
	botCommand.Flags().StringVar(&outputDirectory, outputDirFlagName, defaultOutputDirectory, outputDirFlagDescription)
	registerCopyFlag(botCommand.Flags(), &copyEnabled)
	return botCommand
}

func createServeCommand(options *rootOptions, dependencies Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   serveCommandName,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			container, logger, err := buildRuntime(options, dependencies)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			server, resolveErr := app.ResolveGateway(container)
			if resolveErr != nil {
				return resolveErr
			}
			parent := command.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()
			output := command.OutOrStdout()
			return server.Run(ctx, func(address string) {
				fmt.Fprintf(output, gatewayListeningFormat, address)
			})
		},
	}
}

func createConfigCommand() *cobra.Command {
	var global bool
	var force bool

	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
	}
	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, err := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if err != nil {
				return err
			}
			fmt.Fprintf(command.OutOrStdout(), configurationWrittenFormat, path)
			return nil
		},
	}
	initCommand.Flags().BoolVar(&global, globalFlagName, false, globalFlagDescription)
	initCommand.Flags().BoolVar(&force, forceFlagName, false, forceFlagDescription)
	configCommand.AddCommand(initCommand)
	return configCommand
}

func resolveBot(options *rootOptions, dependencies Dependencies) (*bot.Bot, *zap.Logger, error) {
	container, logger, err := buildRuntime(options, dependencies)
	if err != nil {
		return nil, nil, err
	}
	instance, resolveErr := app.ResolveBot(container)
	if resolveErr != nil {
		return nil, nil, resolveErr
	}
	return instance, logger, nil
}

func buildRuntime(options *rootOptions, dependencies Dependencies) (*dig.Container, *zap.Logger, error) {
	logger := dependencies.Logger
	if options.verbose {
		verboseLogger, loggerErr := utils.NewLeveledLogger(zapcore.DebugLevel)
		if loggerErr != nil {
			return nil, nil, fmt.Errorf(errorInitializeLoggerFormat, loggerErr)
		}
		logger = verboseLogger
	}
	configuration, loadErr := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: options.configPath})
	if loadErr != nil {
		return nil, nil, fmt.Errorf(errorLoadConfigurationFmt, loadErr)
	}
	configuration, applied := config.ApplyEnvironment(configuration, dependencies.Environment)
	if len(applied) > 0 {
		logger.Debug("environment overrides applied", zap.Strings("variables", applied))
	}
	container, containerErr := dependencies.NewRuntime(configuration, logger)
	if containerErr != nil {
		return nil, nil, containerErr
	}
	return container, logger, nil
}

// writeReply prints the reply text and stores any attachment under outputDirectory.
// With copy enabled the attachment content, or the text when there is none, goes to the clipboard.
func writeReply(writer io.Writer, reply bot.Reply, outputDirectory string, copyEnabled bool, copier clipboard.Copier) error {
	fmt.Fprintln(writer, reply.Text)
	copied := reply.Text
	if reply.Attachment != nil {
		if err := os.MkdirAll(outputDirectory, attachmentDirPermissions); err != nil {
			return fmt.Errorf(errorWriteAttachmentFormat, reply.Attachment.FileName, err)
		}
		destination := filepath.Join(outputDirectory, filepath.Base(reply.Attachment.FileName))
		if err := os.WriteFile(destination, []byte(reply.Attachment.Content), attachmentFilePermissions); err != nil {
			return fmt.Errorf(errorWriteAttachmentFormat, reply.Attachment.FileName, err)
		}
		fmt.Fprintf(writer, attachmentWrittenFormat, destination, utils.FormatFileSize(int64(len(reply.Attachment.Content))))
		copied = reply.Attachment.Content
	}
	if copyEnabled {
		if err := copier.Copy(copied); err != nil {
			return fmt.Errorf(errorCopyReplyFormat, err)
		}
	}
	return nil
}

func currentAuthor() string {
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	return defaultAuthor
}
