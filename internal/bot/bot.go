// Package bot turns chat commands into replies. It is transport neutral: a platform
// adapter, the HTTP gateway and the CLI all call Dispatch or HandleMessage.
package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/temirov/reposcope/internal/insights"
	"github.com/temirov/reposcope/internal/llm"
	"github.com/temirov/reposcope/internal/locator"
	"github.com/temirov/reposcope/internal/output"
	"github.com/temirov/reposcope/internal/types"
)

const (
	// DefaultPrefix starts every command message.
	DefaultPrefix      = "!"
	defaultCommitLimit = 10
	greetingTrigger    = "hello"
	greetingFormat     = "Hey %s! 👋"
	unknownCommandText = "Unknown command `%s%s`. Try `%shelpme`."
)

// TreeSource fetches a repository directory tree.
type TreeSource interface {
	Fetch(ctx context.Context, owner string, repository string, rootPath string) (*types.TreeNode, error)
}

// InsightSource reads repository metadata other than the tree.
type InsightSource interface {
	Contributors(ctx context.Context, repository locator.Repository) ([]insights.Contributor, error)
	Commits(ctx context.Context, repository locator.Repository, limit int) ([]insights.Commit, error)
	FileContent(ctx context.Context, repository locator.Repository, filePath string) (string, error)
}

// Settings tunes reply formatting.
type Settings struct {
	Prefix          string
	MaxInlineLength int
	CommitLimit     int
}

func (settings Settings) normalized() Settings {
	if strings.TrimSpace(settings.Prefix) == "" {
		settings.Prefix = DefaultPrefix
	}
	if settings.MaxInlineLength <= 0 {
		settings.MaxInlineLength = output.DefaultMaxInlineLength
	}
	if settings.CommitLimit <= 0 {
		settings.CommitLimit = defaultCommitLimit
	}
	return settings
}

// Attachment is a file sent alongside a reply.
type Attachment struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

// Reply is what the bot says back. Attachment is nil for text-only replies.
type Reply struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Command is one parsed invocation.
type Command struct {
	Name     string
	Argument string
	Author   string
}

// CommandInfo describes a command for help output and CLI generation.
type CommandInfo struct {
	Name        string `json:"name"`
	Usage       string `json:"usage"`
	Description string `json:"description"`
}

type handlerFunc func(ctx context.Context, command Command) (Reply, error)

type commandDefinition struct {
	info    CommandInfo
	handler handlerFunc
}

// Bot dispatches commands to their handlers.
type Bot struct {
	trees       TreeSource
	insights    InsightSource
	analyzer    llm.Analyzer
	settings    Settings
	logger      *zap.Logger
	definitions []commandDefinition
}

// New returns a Bot. The analyzer may be nil, in which case the AI commands reply that they are not configured.
func New(trees TreeSource, insightSource InsightSource, analyzer llm.Analyzer, settings Settings) *Bot {
	bot := &Bot{
		trees:    trees,
		insights: insightSource,
		analyzer: analyzer,
		settings: settings.normalized(),
		logger:   zap.NewNop(),
	}
	bot.definitions = bot.commandDefinitions()
	return bot
}

// WithLogger sets the logger used to record failed commands.
func (bot *Bot) WithLogger(logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	bot.logger = logger
	return bot
}

// Prefix returns the configured command prefix.
func (bot *Bot) Prefix() string {
	return bot.settings.Prefix
}

// Commands lists every command in help order.
func (bot *Bot) Commands() []CommandInfo {
	infos := make([]CommandInfo, 0, len(bot.definitions))
	for _, definition := range bot.definitions {
		infos = append(infos, definition.info)
	}
	return infos
}

// Catalog lists every command without constructing a working Bot.
func Catalog() []CommandInfo {
	return (&Bot{settings: Settings{}.normalized()}).withDefinitions().Commands()
}

func (bot *Bot) withDefinitions() *Bot {
	bot.definitions = bot.commandDefinitions()
	return bot
}

// HasCommand reports whether name is a known command.
func (bot *Bot) HasCommand(name string) bool {
	_, found := bot.lookup(name)
	return found
}

func (bot *Bot) lookup(name string) (commandDefinition, bool) {
	for _, definition := range bot.definitions {
		if definition.info.Name == name {
			return definition, true
		}
	}
	return commandDefinition{}, false
}

// Dispatch runs command and always produces a reply. Handler errors are logged and
// rendered as user-facing text.
func (bot *Bot) Dispatch(ctx context.Context, command Command) Reply {
	definition, found := bot.lookup(command.Name)
	if !found {
		return Reply{Text: fmt.Sprintf(unknownCommandText, bot.settings.Prefix, command.Name, bot.settings.Prefix)}
	}
	command.Argument = strings.TrimSpace(command.Argument)
	reply, err := definition.handler(ctx, command)
	if err != nil {
		bot.logger.Warn("command failed",
			zap.String("command", command.Name),
			zap.String("argument", command.Argument),
			zap.String("author", command.Author),
			zap.Error(err),
		)
		return Reply{Text: describeError(command.Name, err)}
	}
	return reply
}

// HandleMessage answers a raw chat message. The boolean is false when the message
// is neither a greeting nor a command and should be ignored.
func (bot *Bot) HandleMessage(ctx context.Context, content string, author string) (Reply, bool) {
	if strings.EqualFold(strings.TrimSpace(content), greetingTrigger) {
		return Reply{Text: fmt.Sprintf(greetingFormat, author)}, true
	}
	command, isCommand := ParseMessage(bot.settings.Prefix, content)
	if !isCommand {
		return Reply{}, false
	}
	command.Author = author
	return bot.Dispatch(ctx, command), true
}

// ParseMessage splits "!name argument text" into a Command. Messages without the
// prefix, or with nothing after it, are not commands.
func ParseMessage(prefix string, content string) (Command, bool) {
	trimmed := strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(trimmed, prefix) {
		return Command{}, false
	}
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	if body == "" {
		return Command{}, false
	}
	name, argument := body, ""
	if separator := strings.IndexFunc(body, unicode.IsSpace); separator >= 0 {
		name, argument = body[:separator], body[separator:]
	}
	return Command{Name: strings.ToLower(name), Argument: strings.TrimSpace(argument)}, true
}
