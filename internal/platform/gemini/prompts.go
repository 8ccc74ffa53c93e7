package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/language"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// difficultyExplanations describe each tier to the model.
var difficultyExplanations = map[domain.Difficulty]string{
	domain.DifficultyA1: "Beginner, understands and uses simple phrases and sentences.",
	domain.DifficultyA2: "Basic knowledge of frequently used expressions in areas of immediate relevance.",
	domain.DifficultyB1: "Intermediate, understands main points of clear standard language.",
	domain.DifficultyB2: "Independent, can interact with native speakers without strain.",
	domain.DifficultyC1: "Proficient, can understand demanding, longer clauses and recognise implicit meaning.",
	domain.DifficultyC2: "Near native, understands virtually everything heard or read with ease.",
}

// languagesWithoutSpaces may mark words with spaces when asked not to mark them.
var languagesWithoutSpaces = map[string]bool{
	"Chinese":  true,
	"Japanese": true,
}

// promptData represents the data passed to the prompt templates
type promptData struct {
	Language    language.Language
	Sentence    string
	Units       []string
	Grammar     string
	Difficulty  domain.Difficulty
	Explanation string
	Hint        []string
	SpacedMarks bool
}

type prompts struct {
	sentences *template.Template
	tag       *template.Template
	translate *template.Template
	phonetic  *template.Template
}

func loadPrompts() (*prompts, error) {
	parse := func(name string) (*template.Template, error) {
		t, err := template.ParseFS(promptFS, "prompts/"+name+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s prompt template: %w", name, err)
		}
		return t, nil
	}

	var (
		p   prompts
		err error
	)
	if p.sentences, err = parse("sentences"); err != nil {
		return nil, err
	}
	if p.tag, err = parse("tag"); err != nil {
		return nil, err
	}
	if p.translate, err = parse("translate"); err != nil {
		return nil, err
	}
	if p.phonetic, err = parse("phonetic"); err != nil {
		return nil, err
	}
	return &p, nil
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
