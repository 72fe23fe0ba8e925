// Package tui is the interactive question and answer view.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"contextiq/internal/domain"
)

// Asker is the TUI-facing subset of the RAG service.
type Asker interface {
	Answer(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
	Models() []string
}

// entry is one page of the answer view: the combined answer or one document's answer.
type entry struct {
	title string
	body  string
}

type answerMsg struct {
	query  string
	model  string
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	asker    Asker
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	summary  string
	status   string

	models []string
	model  int

	answer    *domain.Answer
	entries   []entry
	cursor    int
	lastQuery string
	pending   bool
	ready     bool
}

// New creates the chat model. defaultModel preselects a provider when it is
// among asker.Models().
func New(asker Asker, summary, defaultModel string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	models := asker.Models()
	selected := 0
	for i, name := range models {
		if name == defaultModel {
			selected = i
		}
	}
	return Model{
		asker:    asker,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready. Tab switches model, ↑/↓ switches document.",
		models:   models,
		model:    selected,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Model returns the provider the next question will use.
func (m Model) Model() string {
	if len(m.models) == 0 {
		return ""
	}
	return m.models[m.model]
}

func (m Model) ask(query string) tea.Cmd {
	req := domain.AskRequest{Query: query, Model: m.Model()}
	asker, timeout := m.asker, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		ans, err := asker.Answer(ctx, req)
		return answerMsg{query: query, model: req.Model, answer: ans, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 2 + qh + 1 // header and summary, status and footer, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderEntry())
		return m, nil
	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.answer = msg.answer
		m.entries = entries(msg.answer)
		m.cursor = 0
		m.lastQuery = msg.query
		m.status = fmt.Sprintf("Answered %q with %s", msg.query, msg.model)
		m.viewport.SetContent(m.renderEntry())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, m.ask(q)
		case "tab":
			if len(m.models) > 0 {
				m.model = (m.model + 1) % len(m.models)
				m.status = "Model: " + m.Model()
			}
			return m, nil
		case "down":
			if len(m.entries) > 0 {
				m.cursor = (m.cursor + 1) % len(m.entries)
				m.viewport.SetContent(m.renderEntry())
				return m, nil
			}
		case "up":
			if len(m.entries) > 0 {
				m.cursor = (m.cursor - 1 + len(m.entries)) % len(m.entries)
				m.viewport.SetContent(m.renderEntry())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("contextiq")
	summary := mutedStyle.Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status + "\n" + m.footer()
}

func (m Model) footer() string {
	parts := []string{"model: " + m.Model()}
	if m.answer != nil {
		parts = append(parts, fmt.Sprintf("confidence: %s (max %.2f, avg %.2f)",
			m.answer.Confidence.Label, m.answer.Confidence.MaxScore, m.answer.Confidence.AvgScore))
		if src := formatSources(m.answer.Sources); src != "" {
			parts = append(parts, "sources: "+src)
		}
	}
	return mutedStyle.Render(strings.Join(parts, "  |  "))
}

// entries flattens an answer into pages. Per-document answers follow the
// order of the sources so the view is stable.
func entries(a *domain.Answer) []entry {
	if a == nil {
		return nil
	}
	if a.Mode != domain.ModePerDocument {
		return []entry{{title: "Answer", body: a.Answer}}
	}
	out := make([]entry, 0, len(a.Answers))
	seen := map[string]bool{}
	for _, s := range a.Sources {
		if body, ok := a.Answers[s.DocumentName]; ok && !seen[s.DocumentName] {
			seen[s.DocumentName] = true
			out = append(out, entry{title: s.DocumentName, body: body})
		}
	}
	for name, body := range a.Answers {
		if !seen[name] {
			out = append(out, entry{title: name, body: body})
		}
	}
	return out
}

func formatSources(sources []domain.Source) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		if len(s.Pages) == 0 {
			names = append(names, s.DocumentName)
			continue
		}
		pages := make([]string, len(s.Pages))
		for i, p := range s.Pages {
			pages[i] = fmt.Sprint(p)
		}
		names = append(names, fmt.Sprintf("%s (p. %s)", s.DocumentName, strings.Join(pages, ", ")))
	}
	return strings.Join(names, "; ")
}

func (m Model) renderEntry() string {
	if len(m.entries) == 0 {
		return "No answer yet."
	}
	e := m.entries[m.cursor]
	title := e.title
	if len(m.entries) > 1 {
		title = fmt.Sprintf("%s  (%d/%d)", e.title, m.cursor+1, len(m.entries))
	}
	return title + "\n\n" + highlightBestSentence(e.body, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence emphasises the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	qTokens := tokenSet(query)
	if len(qTokens) == 0 {
		return strings.TrimSpace(text)
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qTokens, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == best {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlap(query map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range wordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
