// Package tui is an interactive terminal chat over the response pipeline.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// Responder is the TUI-facing subset of the orchestrator.
type Responder interface {
	Respond(ctx context.Context, prompt, sessionID string) entities.ResponseResult
}

type speaker int

const (
	speakerUser speaker = iota
	speakerBot
)

type line struct {
	who    speaker
	text   string
	intent entities.Intent
}

// replyMsg carries one finished turn back into Update.
type replyMsg struct {
	result entities.ResponseResult
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx        context.Context
	responder  Responder
	sessionID  string
	input      textinput.Model
	viewport   viewport.Model
	transcript []line
	status     string
	waiting    bool
	ready      bool
}

// New creates a chat model bound to a fresh session id.
func New(ctx context.Context, responder Responder) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe your symptoms or ask a health question"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:       ctx,
		responder: responder,
		sessionID: uuid.New().String(),
		input:     ti,
		viewport:  vp,
		status:    "Type a message and press Enter. Ctrl+C quits.",
	}
}

// SessionID is the conversation id used for every turn in this model.
func (m Model) SessionID() string { return m.sessionID }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case replyMsg:
		m.waiting = false
		m.transcript = append(m.transcript, line{who: speakerBot, text: msg.result.ResponseText, intent: msg.result.Intent})
		m.status = fmt.Sprintf("intent=%s confidence=%.2f", msg.result.Intent, msg.result.Confidence)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" || m.waiting {
				return m, nil
			}
			m.input.SetValue("")
			m.waiting = true
			m.status = "Thinking..."
			m.transcript = append(m.transcript, line{who: speakerUser, text: prompt})
			m.refresh()
			return m, m.respond(prompt)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) respond(prompt string) tea.Cmd {
	ctx, responder, sessionID := m.ctx, m.responder, m.sessionID
	return func() tea.Msg {
		return replyMsg{result: responder.Respond(ctx, prompt, sessionID)}
	}
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("MedChat") + " " + mutedStyle.Render("session "+m.sessionID[:8])
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	width := max(20, m.viewport.Width-6)
	var b strings.Builder
	for i, l := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch l.who {
		case speakerUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(lipgloss.NewStyle().Width(width).Render(l.text))
		case speakerBot:
			b.WriteString(botStyleFor(l.intent).Render("Bot: "))
			b.WriteString(lipgloss.NewStyle().Width(width).Render(l.text))
		}
	}
	return b.String()
}

func botStyleFor(intent entities.Intent) lipgloss.Style {
	switch intent {
	case entities.IntentEmergency, entities.IntentEmergencyKeyword:
		return emergencyStyle
	case entities.IntentError:
		return errorStyle
	default:
		return botStyle
	}
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle        = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	emergencyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
