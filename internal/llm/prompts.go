package llm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContentPlaceholder marks where user content is substituted into a prompt template.
const ContentPlaceholder = "{content}"

const defaultStructureSystemPrompt = `You are an experienced software architect reviewing a code repository.
You receive the directory tree of a project. Infer what you can and answer in Markdown with these sections:
1. Project Overview: what the project does and what kind of software it is.
2. Languages and Frameworks: main languages and likely frameworks or stacks.
3. Architecture: key directories, their roles and the overall architectural style.
4. Build and Dependencies: build, dependency and configuration tooling, containerization.
5. Testing and Quality: tests, CI workflows, linting and coverage signals.
6. Documentation: README, docs and onboarding material.
7. Deployment: release and infrastructure hints such as Dockerfiles, Helm charts or Terraform.
8. Maturity: licensing, contribution guides and whether it looks like a prototype or a product.
9. Additional Insights: notable conventions, integrations or unusual elements.
Tie each conclusion to the files that suggest it and state likelihoods when unsure.`

const defaultStructureUserTemplate = "Here is the repository structure:\n\n" + ContentPlaceholder

const defaultFileSystemPrompt = "You are an experienced software engineer and code reviewer."

const defaultFileUserTemplate = `Analyze the following file:

` + ContentPlaceholder + `

Cover, using Markdown headings and bullet points:
1. Purpose and functionality.
2. Key components and their roles.
3. Workflow, data flow and notable algorithms.
4. Dependencies and why they matter.
5. Strengths and potential issues, including bugs and performance concerns.
6. Recommended improvements.`

const defaultSummarySystemPrompt = "You summarize source files for other engineers."

const defaultSummaryUserTemplate = "Summarize the following code file concisely:\n\n" + ContentPlaceholder

// PromptSet holds the system prompts and user templates for every model operation.
type PromptSet struct {
	StructureSystem   string
	StructureTemplate string
	FileSystem        string
	FileTemplate      string
	SummarySystem     string
	SummaryTemplate   string
}

// DefaultPromptSet returns the built-in prompts.
func DefaultPromptSet() PromptSet {
	return PromptSet{
		StructureSystem:   defaultStructureSystemPrompt,
		StructureTemplate: defaultStructureUserTemplate,
		FileSystem:        defaultFileSystemPrompt,
		FileTemplate:      defaultFileUserTemplate,
		SummarySystem:     defaultSummarySystemPrompt,
		SummaryTemplate:   defaultSummaryUserTemplate,
	}
}

type promptFile struct {
	Structure promptPair `yaml:"structure"`
	File      promptPair `yaml:"file"`
	Summary   promptPair `yaml:"summary"`
}

type promptPair struct {
	System   string `yaml:"system"`
	Template string `yaml:"template"`
}

// LoadPromptSet overlays prompts from the YAML file at path onto the defaults.
// An empty path returns the defaults.
func LoadPromptSet(path string) (PromptSet, error) {
	prompts := DefaultPromptSet()
	if path == "" {
		return prompts, nil
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return PromptSet{}, fmt.Errorf("read prompts from %s: %w", path, readErr)
	}
	var raw promptFile
	if unmarshalErr := yaml.Unmarshal(data, &raw); unmarshalErr != nil {
		return PromptSet{}, fmt.Errorf("parse prompts from %s: %w", path, unmarshalErr)
	}
	overlay(&prompts.StructureSystem, raw.Structure.System)
	overlay(&prompts.StructureTemplate, raw.Structure.Template)
	overlay(&prompts.FileSystem, raw.File.System)
	overlay(&prompts.FileTemplate, raw.File.Template)
	overlay(&prompts.SummarySystem, raw.Summary.System)
	overlay(&prompts.SummaryTemplate, raw.Summary.Template)
	for name, template := range map[string]string{
		"structure.template": prompts.StructureTemplate,
		"file.template":      prompts.FileTemplate,
		"summary.template":   prompts.SummaryTemplate,
	} {
		if !strings.Contains(template, ContentPlaceholder) {
			return PromptSet{}, fmt.Errorf("parse prompts from %s: %s lacks %s", path, name, ContentPlaceholder)
		}
	}
	return prompts, nil
}

func overlay(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = value
	}
}

func fillTemplate(template string, content string) string {
	return strings.ReplaceAll(template, ContentPlaceholder, content)
}
