package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorBlue      = lipgloss.Color("75")  // Blue for answers
	ColorText      = lipgloss.Color("252") // White/Gray

	// Base Styles
	StyleTitle  = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle = lipgloss.NewStyle().Foreground(ColorSecondary)
	StyleError  = lipgloss.NewStyle().Foreground(ColorError)

	// Semantic Prefix Styles
	StylePrefixUser   = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StylePrefixAnswer = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)

	// Mode badge on the chat header
	StyleModeBadge = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
)
