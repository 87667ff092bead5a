package homework

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"coachflow/internal/services"
)

const defaultPrompt = `You are a supportive coach preparing homework for {{.StudentName}}.

Assignment {{.HWID}} ({{.Date}}) covers these session transcripts:
{{- range .Transcripts}}
- {{.}}
{{- end}}

Read every transcript listed above. Identify the two or three skills the
student practised most, then write a short set of exercises that builds on
them. Keep the tone encouraging and concrete.
`

// PromptData is the template input.
type PromptData struct {
	StudentName string
	HWID        string
	Date        string
	Transcripts []string
}

// Prompt renders the coaching prompt for an assignment.
type Prompt struct {
	tmpl *template.Template
}

// LoadPrompt parses the template at path, or the built-in one when path is empty.
func LoadPrompt(path string) (*Prompt, error) {
	text := defaultPrompt
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "homework", "load prompt", path, err)
		}
		text = string(data)
	}
	return ParsePrompt(text)
}

// ParsePrompt parses text as a prompt template.
func ParsePrompt(text string) (*Prompt, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "homework", "parse prompt", "invalid template", err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

// Render executes the template and appends the lifestyle profile verbatim
// after a separator.
func (p *Prompt) Render(data PromptData, profile string) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	out := strings.TrimRight(buf.String(), "\n")
	if strings.TrimSpace(profile) != "" {
		out += "\n\n---\n" + profile
	}
	return out + "\n", nil
}
