package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/temirov/reposcope/internal/insights"
	"github.com/temirov/reposcope/internal/locator"
	"github.com/temirov/reposcope/internal/output"
	"github.com/temirov/reposcope/internal/types"
	"github.com/temirov/reposcope/internal/utils"
)

const (
	CommandPing          = "ping"
	CommandSay           = "say"
	CommandHelp          = "helpme"
	CommandRepoStructure = "repo_structure"
	CommandAnalyzeRepo   = "wtfisthis"
	CommandContributors  = "contributors"
	CommandCommits       = "commits"
	CommandAnalyzeFile   = "analyze_file"
	CommandSummarizeFile = "summarize_file"
)

const (
	pongText                  = "Pong! 🏓"
	helpHeader                = "**Available Commands:**"
	helpLineFormat            = "`%s%s` - %s"
	usageFormat               = "Usage: `%s%s`"
	missingLocatorText        = "Please provide a GitHub repository URL."
	structureInlineFormat     = "Repository Structure:\n```\n%s\n```"
	structureAttachmentFormat = "Repository structure is too long, sending as a file:\n```\n%s\n```"
	analysisText              = "Analysis of the repository:"
	contributorsInlineFormat  = "**Contributors:**\n%s"
	contributorsTooLongText   = "Contributor list is too long, sending as a file:"
	noContributorsText        = "No contributors found for this repository."
	contributorItemFormat     = "%s (%d contributions)"
	commitsInlineFormat       = "**Recent commits:**\n%s"
	commitsTooLongText        = "Commit history is too long, sending as a file:"
	noCommitsText             = "No commits found for this repository."
	commitItemFormat          = "`%s` %s (%s)"
	commitItemDatedFormat     = "`%s` %s (%s, %s)"
	fileAnalysisFormat        = "Analysis of `%s`:"
	fileSummaryInlineFormat   = "Summary of `%s`:\n%s"
	fileSummaryTooLongFormat  = "Summary of `%s` is too long, sending as a file:"
	emptyFileText             = "The file `%s` is empty."
	structureFileName         = "repo_structure.txt"
	analysisFileName          = "repo_analysis.md"
	contributorsFileName      = "contributors.txt"
	commitsFileName           = "commits.txt"
	fileAnalysisFileName      = "file_analysis.md"
	fileSummaryFileName       = "file_summary.md"
)

func (bot *Bot) commandDefinitions() []commandDefinition {
	return []commandDefinition{
		{
			info:    CommandInfo{Name: CommandPing, Usage: CommandPing, Description: "Check if the bot is responsive."},
			handler: bot.handlePing,
		},
		{
			info:    CommandInfo{Name: CommandSay, Usage: CommandSay + " <message>", Description: "Make the bot repeat your message."},
			handler: bot.handleSay,
		},
		{
			info:    CommandInfo{Name: CommandHelp, Usage: CommandHelp, Description: "List the available commands."},
			handler: bot.handleHelp,
		},
		{
			info:    CommandInfo{Name: CommandRepoStructure, Usage: CommandRepoStructure + " <GitHub Repo URL> [path]", Description: "Fetch and display the directory structure of a GitHub repository."},
			handler: bot.handleRepoStructure,
		},
		{
			info:    CommandInfo{Name: CommandAnalyzeRepo, Usage: CommandAnalyzeRepo + " <GitHub Repo URL>", Description: "Use AI to explain what is going on in a repository."},
			handler: bot.handleAnalyzeRepository,
		},
		{
			info:    CommandInfo{Name: CommandContributors, Usage: CommandContributors + " <GitHub Repo URL>", Description: "List the contributors of a GitHub repository."},
			handler: bot.handleContributors,
		},
		{
			info:    CommandInfo{Name: CommandCommits, Usage: CommandCommits + " <GitHub Repo URL>", Description: "Show the most recent commits of a GitHub repository."},
			handler: bot.handleCommits,
		},
		{
			info:    CommandInfo{Name: CommandAnalyzeFile, Usage: CommandAnalyzeFile + " <GitHub Repo URL> <file path>", Description: "Use AI to review a single file."},
			handler: bot.handleAnalyzeFile,
		},
		{
			info:    CommandInfo{Name: CommandSummarizeFile, Usage: CommandSummarizeFile + " <GitHub Repo URL> <file path>", Description: "Use AI to summarize a single file."},
			handler: bot.handleSummarizeFile,
		},
	}
}

func (bot *Bot) handlePing(context.Context, Command) (Reply, error) {
	return Reply{Text: pongText}, nil
}

func (bot *Bot) handleSay(_ context.Context, command Command) (Reply, error) {
	if command.Argument == "" {
		return bot.usage(CommandSay), nil
	}
	return Reply{Text: command.Argument}, nil
}

func (bot *Bot) handleHelp(context.Context, Command) (Reply, error) {
	lines := []string{helpHeader}
	for _, info := range bot.Commands() {
		lines = append(lines, fmt.Sprintf(helpLineFormat, bot.settings.Prefix, info.Usage, info.Description))
	}
	return Reply{Text: strings.Join(lines, "\n")}, nil
}

func (bot *Bot) handleRepoStructure(ctx context.Context, command Command) (Reply, error) {
	rawLocator, rootPath := splitArgument(command.Argument)
	if rawLocator == "" {
		return Reply{Text: missingLocatorText}, nil
	}
	rendered, err := bot.renderStructure(ctx, rawLocator, rootPath)
	if err != nil {
		return Reply{}, err
	}
	switch decision := output.Format(rendered, bot.settings.MaxInlineLength, structureFileName).(type) {
	case types.DecisionAttachment:
		return Reply{
			Text:       fmt.Sprintf(structureAttachmentFormat, decision.Preview),
			Attachment: &Attachment{FileName: decision.FileName, Content: decision.Content},
		}, nil
	case types.DecisionInline:
		return Reply{Text: fmt.Sprintf(structureInlineFormat, decision.Text)}, nil
	default:
		return Reply{}, fmt.Errorf("unexpected output decision %T", decision)
	}
}

func (bot *Bot) handleAnalyzeRepository(ctx context.Context, command Command) (Reply, error) {
	rawLocator, rootPath := splitArgument(command.Argument)
	if rawLocator == "" {
		return Reply{Text: missingLocatorText}, nil
	}
	if bot.analyzer == nil {
		return Reply{}, errAnalyzerMissing
	}
	rendered, err := bot.renderStructure(ctx, rawLocator, rootPath)
	if err != nil {
		return Reply{}, err
	}
	analysis, analysisErr := bot.analyzer.AnalyzeStructure(ctx, rendered)
	if analysisErr != nil {
		return Reply{}, analysisErr
	}
	return Reply{Text: analysisText, Attachment: &Attachment{FileName: analysisFileName, Content: analysis}}, nil
}

func (bot *Bot) handleContributors(ctx context.Context, command Command) (Reply, error) {
	repository, err := bot.repositoryArgument(command)
	if err != nil || repository == nil {
		return Reply{Text: missingLocatorText}, err
	}
	contributors, fetchErr := bot.insights.Contributors(ctx, *repository)
	if fetchErr != nil {
		return Reply{}, fetchErr
	}
	if len(contributors) == 0 {
		return Reply{Text: noContributorsText}, nil
	}
	items := make([]string, 0, len(contributors))
	for _, contributor := range contributors {
		items = append(items, fmt.Sprintf(contributorItemFormat, contributor.Login, contributor.Contributions))
	}
	return bot.listReply(output.RenderList(items), contributorsInlineFormat, contributorsTooLongText, contributorsFileName), nil
}

func (bot *Bot) handleCommits(ctx context.Context, command Command) (Reply, error) {
	repository, err := bot.repositoryArgument(command)
	if err != nil || repository == nil {
		return Reply{Text: missingLocatorText}, err
	}
	commits, fetchErr := bot.insights.Commits(ctx, *repository, bot.settings.CommitLimit)
	if fetchErr != nil {
		return Reply{}, fetchErr
	}
	if len(commits) == 0 {
		return Reply{Text: noCommitsText}, nil
	}
	items := make([]string, 0, len(commits))
	for _, commit := range commits {
		items = append(items, formatCommit(commit))
	}
	return bot.listReply(output.RenderList(items), commitsInlineFormat, commitsTooLongText, commitsFileName), nil
}

func (bot *Bot) handleAnalyzeFile(ctx context.Context, command Command) (Reply, error) {
	repository, filePath, content, reply, err := bot.loadFile(ctx, command, CommandAnalyzeFile)
	if err != nil || reply != nil {
		return derefReply(reply), err
	}
	analysis, analysisErr := bot.analyzer.AnalyzeFile(ctx, content)
	if analysisErr != nil {
		return Reply{}, fmt.Errorf("analyze %s/%s: %w", repository, filePath, analysisErr)
	}
	return Reply{
		Text:       fmt.Sprintf(fileAnalysisFormat, filePath),
		Attachment: &Attachment{FileName: fileAnalysisFileName, Content: analysis},
	}, nil
}

func (bot *Bot) handleSummarizeFile(ctx context.Context, command Command) (Reply, error) {
	repository, filePath, content, reply, err := bot.loadFile(ctx, command, CommandSummarizeFile)
	if err != nil || reply != nil {
		return derefReply(reply), err
	}
	summary, summaryErr := bot.analyzer.SummarizeFile(ctx, content)
	if summaryErr != nil {
		return Reply{}, fmt.Errorf("summarize %s/%s: %w", repository, filePath, summaryErr)
	}
	inlineText := fmt.Sprintf(fileSummaryInlineFormat, filePath, summary)
	if _, inline := output.Format(inlineText, bot.settings.MaxInlineLength, fileSummaryFileName).(types.DecisionInline); inline {
		return Reply{Text: inlineText}, nil
	}
	return Reply{
		Text:       fmt.Sprintf(fileSummaryTooLongFormat, filePath),
		Attachment: &Attachment{FileName: fileSummaryFileName, Content: summary},
	}, nil
}

// renderStructure runs the core pipeline: parse, fetch, render.
func (bot *Bot) renderStructure(ctx context.Context, rawLocator string, rootPath string) (string, error) {
	repository, err := locator.Parse(rawLocator)
	if err != nil {
		return "", err
	}
	root, fetchErr := bot.trees.Fetch(ctx, repository.Owner, repository.Name, rootPath)
	if fetchErr != nil {
		return "", fetchErr
	}
	return output.RenderDirectory(root), nil
}

// repositoryArgument returns nil without error when the argument is missing.
func (bot *Bot) repositoryArgument(command Command) (*locator.Repository, error) {
	rawLocator, _ := splitArgument(command.Argument)
	if rawLocator == "" {
		return nil, nil
	}
	repository, err := locator.Parse(rawLocator)
	if err != nil {
		return nil, err
	}
	return &repository, nil
}

// loadFile resolves "<locator> <path>" and downloads the file. A non-nil reply
// short-circuits the handler with a usage or notice message.
func (bot *Bot) loadFile(ctx context.Context, command Command, commandName string) (locator.Repository, string, string, *Reply, error) {
	rawLocator, filePath := splitArgument(command.Argument)
	if rawLocator == "" || filePath == "" {
		usage := bot.usage(commandName)
		return locator.Repository{}, "", "", &usage, nil
	}
	if bot.analyzer == nil {
		return locator.Repository{}, "", "", nil, errAnalyzerMissing
	}
	repository, err := locator.Parse(rawLocator)
	if err != nil {
		return locator.Repository{}, "", "", nil, err
	}
	content, fetchErr := bot.insights.FileContent(ctx, repository, filePath)
	if fetchErr != nil {
		return locator.Repository{}, "", "", nil, fetchErr
	}
	if strings.TrimSpace(content) == "" {
		notice := Reply{Text: fmt.Sprintf(emptyFileText, filePath)}
		return locator.Repository{}, "", "", &notice, nil
	}
	return repository, filePath, content, nil, nil
}

func (bot *Bot) listReply(rendered string, inlineFormat string, tooLongText string, fileName string) Reply {
	if attachment, tooLong := output.Format(rendered, bot.settings.MaxInlineLength, fileName).(types.DecisionAttachment); tooLong {
		return Reply{Text: tooLongText, Attachment: &Attachment{FileName: attachment.FileName, Content: attachment.Content}}
	}
	return Reply{Text: fmt.Sprintf(inlineFormat, rendered)}
}

func (bot *Bot) usage(commandName string) Reply {
	definition, _ := bot.lookup(commandName)
	return Reply{Text: fmt.Sprintf(usageFormat, bot.settings.Prefix, definition.info.Usage)}
}

func formatCommit(commit insights.Commit) string {
	author := commit.Author
	if author == "" {
		author = "unknown"
	}
	if commit.Date.IsZero() {
		return fmt.Sprintf(commitItemFormat, commit.SHA, commit.Message, author)
	}
	return fmt.Sprintf(commitItemDatedFormat, commit.SHA, commit.Message, author, utils.FormatTimestamp(commit.Date))
}

// splitArgument separates the first whitespace-delimited token from the rest.
func splitArgument(argument string) (string, string) {
	trimmed := strings.TrimSpace(argument)
	separator := strings.IndexFunc(trimmed, unicode.IsSpace)
	if separator < 0 {
		return trimmed, ""
	}
	return trimmed[:separator], strings.TrimSpace(trimmed[separator:])
}

func derefReply(reply *Reply) Reply {
	if reply == nil {
		return Reply{}
	}
	return *reply
}

var errAnalyzerMissing = errors.New("language model analyzer is not configured")
