// Package ui holds the terminal client for the retrieval surface.
package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Client posts questions to a running retrieval server.
type Client struct {
	endpoint string
	userID   string
	http     *http.Client
}

// NewClient builds a client for the server at endpoint (scheme://host:port).
// Deep searches chain several model calls, so the client is patient.
func NewClient(endpoint, userID string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		userID:   userID,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}
}

// Ask sends one question and returns the server's answer.
func (c *Client) Ask(ctx context.Context, question, mode string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"message": question,
		"mode":    mode,
		"user_id": c.userID,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reach retrieval server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Status   string `json:"status"`
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("retrieval server returned %s", resp.Status)
	}
	if out.Status != "success" {
		if out.Error == "" {
			out.Error = fmt.Sprintf("retrieval server returned %s", resp.Status)
		}
		return "", errors.New(out.Error)
	}
	return out.Response, nil
}

// exchange is one question/answer pair in the session history.
type exchange struct {
	question string
	mode     string
	answer   string
	err      error
}

// answerMsg carries the server reply back into the update loop.
type answerMsg struct {
	answer string
	err    error
}

// ChatModel is the interactive chat session.
type ChatModel struct {
	client *Client

	input textinput.Model
	spin  spinner.Model

	history  []exchange
	modes    []string
	modeIdx  int
	waiting  bool
	quitting bool
}

// NewChatModel builds the session starting in the given mode.
func NewChatModel(client *Client, mode string) ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your documents..."
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	modes := []string{"normal", "deep", "deeper"}
	idx := 0
	for i, m := range modes {
		if m == mode {
			idx = i
		}
	}

	return ChatModel{
		client:  client,
		input:   ti,
		spin:    s,
		modes:   modes,
		modeIdx: idx,
	}
}

func (m ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ChatModel) ask(question, mode string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		answer, err := client.Ask(context.Background(), question, mode)
		return answerMsg{answer: answer, err: err}
	}
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab:
			if !m.waiting {
				m.modeIdx = (m.modeIdx + 1) % len(m.modes)
			}
			return m, nil
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.waiting {
				return m, nil
			}
			mode := m.modes[m.modeIdx]
			m.history = append(m.history, exchange{question: question, mode: mode})
			m.input.Reset()
			m.waiting = true
			return m, tea.Batch(m.spin.Tick, m.ask(question, mode))
		}

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case answerMsg:
		m.waiting = false
		if n := len(m.history); n > 0 {
			m.history[n-1].answer = msg.answer
			m.history[n-1].err = msg.err
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(StyleTitle.Render("docloom chat"))
	s.WriteString(" ")
	s.WriteString(StyleModeBadge.Render("[" + m.modes[m.modeIdx] + "]"))
	s.WriteString(StyleSubtle.Render("  tab switches mode • esc quits"))
	s.WriteString("\n\n")

	for i, ex := range m.history {
		s.WriteString(StylePrefixUser.Render("you"))
		s.WriteString(StyleSubtle.Render(" (" + ex.mode + ")"))
		s.WriteString(" " + ex.question + "\n")
		switch {
		case ex.err != nil:
			s.WriteString(StyleError.Render("error") + " " + ex.err.Error() + "\n")
		case ex.answer != "":
			s.WriteString(StylePrefixAnswer.Render("docloom") + " " + ex.answer + "\n")
		case m.waiting && i == len(m.history)-1:
			s.WriteString(m.spin.View() + StyleSubtle.Render(" searching...") + "\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(m.input.View())
	s.WriteString("\n")
	return s.String()
}
