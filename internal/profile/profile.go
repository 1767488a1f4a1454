// Package profile holds the site owner's facts used by the chat assistant:
// the remote model's system prompt and the local responder's reply pools.
package profile

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Project is a portfolio entry.
type Project struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url,omitempty"`
}

// Contact lists public ways to reach the owner.
type Contact struct {
	Email    string `yaml:"email"`
	LinkedIn string `yaml:"linkedin,omitempty"`
	GitHub   string `yaml:"github,omitempty"`
	Website  string `yaml:"website,omitempty"`
}

// Responses are the canned reply pools of the local responder. Entries may
// use text/template syntax against the Profile, e.g. "I'm {{.Name}}".
type Responses struct {
	Identity  []string `yaml:"identity"`
	Greeting  []string `yaml:"greeting"`
	Portfolio []string `yaml:"portfolio"`
	Skills    []string `yaml:"skills"`
	Contact   []string `yaml:"contact"`
	Default   []string `yaml:"default"`
}

// Profile describes the site owner.
type Profile struct {
	Name      string    `yaml:"name"`
	Title     string    `yaml:"title"`
	Location  string    `yaml:"location"`
	Summary   string    `yaml:"summary"`
	Skills    []string  `yaml:"skills"`
	Projects  []Project `yaml:"projects"`
	Contact   Contact   `yaml:"contact"`
	Responses Responses `yaml:"responses"`
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Name:     "Alex Rivera",
		Title:    "Full-Stack Software Engineer",
		Location: "Berlin, Germany",
		Summary:  "builds web platforms, APIs and interactive 3D experiences, with a focus on performance and clean architecture",
		Skills:   []string{"Go", "TypeScript", "React", "Next.js", "Node.js", "PostgreSQL", "Redis", "Docker", "Kubernetes", "Three.js"},
		Projects: []Project{
			{Name: "Realtime Analytics Dashboard", Description: "streaming metrics dashboard backed by Go services and PostgreSQL"},
			{Name: "3D Product Configurator", Description: "WebGL product customizer built with React Three Fiber"},
			{Name: "Multilingual Portfolio", Description: "this site: a localized portfolio with an AI chat assistant"},
		},
		Contact: Contact{
			Email:    "hello@example.com",
			LinkedIn: "https://www.linkedin.com/in/example",
			GitHub:   "https://github.com/example",
		},
		Responses: Responses{
			Identity: []string{
				"I'm the virtual assistant of {{.Name}}, a {{.Title}} based in {{.Location}}. Ask me about projects, skills or how to get in touch!",
				"I'm an AI assistant representing {{.Name}}. {{.Name}} {{.Summary}}.",
				"Nice to meet you! I answer questions on behalf of {{.Name}}, {{.Title}}.",
			},
			Greeting: []string{
				"Hello! 👋 How can I help you today? You can ask about {{.Name}}'s projects, skills or availability.",
				"Hi there! Welcome to {{.Name}}'s portfolio. What would you like to know?",
				"Hey! Great to see you here. Curious about a project or looking to collaborate?",
			},
			Portfolio: []string{
				"{{.Name}} has worked on projects such as {{projectNames .Projects}}. Check the portfolio section for details!",
				"Highlights include {{projectNames .Projects}}. Which one would you like to hear more about?",
				"The portfolio section showcases recent work, including {{projectNames .Projects}}.",
			},
			Skills: []string{
				"{{.Name}}'s core stack: {{join .Skills \", \"}}.",
				"{{.Name}} works mostly with {{join .Skills \", \"}}.",
				"Technical skills include {{join .Skills \", \"}}, plus a strong focus on architecture and developer experience.",
			},
			Contact: []string{
				"You can reach {{.Name}} at {{.Contact.Email}} or through the contact form on this page.",
				"The best way to get in touch is the contact form, or email {{.Contact.Email}}.{{if .Contact.LinkedIn}} {{.Name}} is also on LinkedIn: {{.Contact.LinkedIn}}{{end}}",
				"{{.Name}} is open to new opportunities! Send a message via the contact form or write to {{.Contact.Email}}.",
			},
			Default: []string{
				"That's a great question! I can tell you about {{.Name}}'s projects, skills or how to get in touch.",
				"I'm not sure I understood that. Try asking about projects, skills or contact details.",
				"Thanks for your message! For detailed questions, the contact form is the best way to reach {{.Name}} directly.",
			},
		},
	}
}

// Load reads a YAML profile from path and fills unset fields from Default.
// An empty path returns Default.
func Load(path string) (Profile, error) {
	p := Default()
	if path == "" {
		return p.Render()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	var fromFile Profile
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return merge(p, fromFile).Render()
}

func merge(base, over Profile) Profile {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	pool := func(a, b []string) []string {
		if len(b) > 0 {
			return b
		}
		return a
	}
	out := base
	out.Name = pick(base.Name, over.Name)
	out.Title = pick(base.Title, over.Title)
	out.Location = pick(base.Location, over.Location)
	out.Summary = pick(base.Summary, over.Summary)
	out.Skills = pool(base.Skills, over.Skills)
	if len(over.Projects) > 0 {
		out.Projects = over.Projects
	}
	if over.Contact != (Contact{}) {
		out.Contact = over.Contact
	}
	out.Responses = Responses{
		Identity:  pool(base.Responses.Identity, over.Responses.Identity),
		Greeting:  pool(base.Responses.Greeting, over.Responses.Greeting),
		Portfolio: pool(base.Responses.Portfolio, over.Responses.Portfolio),
		Skills:    pool(base.Responses.Skills, over.Responses.Skills),
		Contact:   pool(base.Responses.Contact, over.Responses.Contact),
		Default:   pool(base.Responses.Default, over.Responses.Default),
	}
	return out
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"projectNames": func(ps []Project) string {
		names := make([]string, 0, len(ps))
		for _, p := range ps {
			names = append(names, p.Name)
		}
		return strings.Join(names, ", ")
	},
}

// Render expands the templates in every reply pool and returns the result.
func (p Profile) Render() (Profile, error) {
	var err error
	out := p
	pools := []*[]string{
		&out.Responses.Identity, &out.Responses.Greeting, &out.Responses.Portfolio,
		&out.Responses.Skills, &out.Responses.Contact, &out.Responses.Default,
	}
	for _, pool := range pools {
		if *pool, err = p.renderAll(*pool); err != nil {
			return Profile{}, err
		}
	}
	return out, nil
}

func (p Profile) renderAll(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		r, err := p.render(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p Profile) render(text string) (string, error) {
	t, err := template.New("reply").Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse reply template %q: %w", text, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render reply template %q: %w", text, err)
	}
	return buf.String(), nil
}

const systemPromptTemplate = `You are the friendly AI assistant on the portfolio website of {{.Name}}, a {{.Title}} based in {{.Location}}.
About {{.Name}}: {{.Name}} {{.Summary}}.
Skills: {{join .Skills ", "}}.
Projects:
{{range .Projects}}- {{.Name}}: {{.Description}}{{if .URL}} ({{.URL}}){{end}}
{{end}}Contact: email {{.Contact.Email}}{{if .Contact.LinkedIn}}, LinkedIn {{.Contact.LinkedIn}}{{end}}{{if .Contact.GitHub}}, GitHub {{.Contact.GitHub}}{{end}}.

Answer questions about {{.Name}}'s work, skills and availability in a concise, professional and warm tone, in at most three short paragraphs.
Reply in the language the visitor writes in. If you do not know something, say so and suggest the contact form.
Never invent projects, employers or personal details that are not listed above.`

// SystemPrompt returns the fixed instructions sent to the remote model.
func (p Profile) SystemPrompt() string {
	s, err := p.render(systemPromptTemplate)
	if err != nil {
		// The template is a constant; a failure here is a programming error.
		panic(err)
	}
	return s
}
