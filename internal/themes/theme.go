// Package themes loads TOML color themes and turns them into lipgloss
// styles for the chat UI.
package themes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/pelletier/go-toml/v2"
)

// Theme represents a complete color theme for Drift
type Theme struct {
	Meta     ThemeMeta      `toml:"meta"`
	Colors   ThemeColors    `toml:"colors"`
	Semantic SemanticColors `toml:"semantic"`
}

// ThemeMeta contains metadata about the theme
type ThemeMeta struct {
	Name    string `toml:"name"`
	Author  string `toml:"author"`
	Variant string `toml:"variant"` // "dark" or "light"
}

// ThemeColors contains the base color palette
type ThemeColors struct {
	Background string `toml:"background"`
	Selection  string `toml:"selection"`
	Foreground string `toml:"foreground"`
	Comment    string `toml:"comment"`
	Red        string `toml:"red"`
	Orange     string `toml:"orange"`
	Yellow     string `toml:"yellow"`
	Green      string `toml:"green"`
	Cyan       string `toml:"cyan"`
	Purple     string `toml:"purple"`
	Pink       string `toml:"pink"`
}

// SemanticColors maps colors to specific UI purposes
type SemanticColors struct {
	SidebarBg       string `toml:"sidebar_bg"`
	SidebarFg       string `toml:"sidebar_fg"`
	SidebarSelected string `toml:"sidebar_selected"`
	SidebarUnread   string `toml:"sidebar_unread"`

	ChatFg            string `toml:"chat_fg"`
	ChatTimestamp     string `toml:"chat_timestamp"`
	ChatUsernameSelf  string `toml:"chat_username_self"`
	ChatUsernameOther string `toml:"chat_username_other"`
	ChatMention       string `toml:"chat_mention"`
	ChatPending       string `toml:"chat_pending"`
	ChatFailed        string `toml:"chat_failed"`

	InputFg          string `toml:"input_fg"`
	InputBorder      string `toml:"input_border"`
	InputBorderFocus string `toml:"input_border_focus"`

	PopupBg       string `toml:"popup_bg"`
	PopupBorder   string `toml:"popup_border"`
	PopupSelected string `toml:"popup_selected"`

	BannerReconnecting string `toml:"banner_reconnecting"`
	BannerOffline      string `toml:"banner_offline"`

	TransferActive string `toml:"transfer_active"`
	TransferReady  string `toml:"transfer_ready"`
	TransferFailed string `toml:"transfer_failed"`

	Error   string `toml:"error"`
	Warning string `toml:"warning"`
	Success string `toml:"success"`
	Info    string `toml:"info"`

	Border string `toml:"border"`
}

// Styles contains pre-computed lipgloss styles for the theme
type Styles struct {
	// Channel list
	SidebarContainer lipgloss.Style
	SidebarItem      lipgloss.Style
	SidebarSelected  lipgloss.Style
	SidebarUnread    lipgloss.Style

	// Message view
	MessageContent lipgloss.Style
	Timestamp      lipgloss.Style
	UsernameSelf   lipgloss.Style
	UsernameOther  lipgloss.Style
	Mention        lipgloss.Style
	PendingMessage lipgloss.Style
	FailedMessage  lipgloss.Style
	SystemMessage  lipgloss.Style

	// Input
	InputField   lipgloss.Style
	InputFocused lipgloss.Style

	// Popups
	Popup         lipgloss.Style
	PopupItem     lipgloss.Style
	PopupSelected lipgloss.Style

	// Connection banner
	BannerReconnecting lipgloss.Style
	BannerOffline      lipgloss.Style

	// Transfers
	TransferActive lipgloss.Style
	TransferReady  lipgloss.Style
	TransferFailed lipgloss.Style

	// Feedback
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Info    lipgloss.Style

	// Misc
	Border lipgloss.Style
}

// LoadTheme loads a theme from a TOML file
func LoadTheme(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file: %w", err)
	}

	var theme Theme
	if err := toml.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}

	return &theme, nil
}

// ListThemes returns a list of available theme names in a directory
func ListThemes(themesDir string) ([]string, error) {
	entries, err := os.ReadDir(themesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read themes directory: %w", err)
	}

	var themes []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".toml" {
			name := entry.Name()[:len(entry.Name())-5]
			themes = append(themes, name)
		}
	}

	return themes, nil
}

// BuildStyles creates lipgloss styles from a theme
func (t *Theme) BuildStyles() *Styles {
	s := &Styles{}

	s.SidebarContainer = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.SidebarFg)).
		Padding(0, 1)

	s.SidebarItem = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.SidebarFg)).
		PaddingLeft(1)

	s.SidebarSelected = lipgloss.NewStyle().
		Background(lipgloss.Color(t.Semantic.SidebarSelected)).
		Foreground(lipgloss.Color(t.Semantic.SidebarFg)).
		PaddingLeft(1).
		Bold(true)

	s.SidebarUnread = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.SidebarUnread)).
		Bold(true)

	s.MessageContent = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatFg))

	s.Timestamp = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatTimestamp)).
		Faint(true)

	s.UsernameSelf = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatUsernameSelf)).
		Bold(true)

	s.UsernameOther = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatUsernameOther)).
		Bold(true)

	s.Mention = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatMention)).
		Bold(true)

	s.PendingMessage = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatPending)).
		Faint(true)

	s.FailedMessage = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatFailed))

	s.SystemMessage = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Colors.Comment)).
		Italic(true)

	s.InputField = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.InputFg)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Semantic.InputBorder)).
		Padding(0, 1)

	s.InputFocused = s.InputField.
		BorderForeground(lipgloss.Color(t.Semantic.InputBorderFocus))

	s.Popup = lipgloss.NewStyle().
		Background(lipgloss.Color(t.Semantic.PopupBg)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Semantic.PopupBorder)).
		Padding(0, 1)

	s.PopupItem = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.ChatFg))

	s.PopupSelected = lipgloss.NewStyle().
		Background(lipgloss.Color(t.Semantic.PopupSelected)).
		Bold(true)

	s.BannerReconnecting = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Colors.Background)).
		Background(lipgloss.Color(t.Semantic.BannerReconnecting)).
		Bold(true).
		Padding(0, 1)

	s.BannerOffline = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Colors.Background)).
		Background(lipgloss.Color(t.Semantic.BannerOffline)).
		Bold(true).
		Padding(0, 1)

	s.TransferActive = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.TransferActive))

	s.TransferReady = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.TransferReady))

	s.TransferFailed = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.TransferFailed))

	s.Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.Error))

	s.Warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.Warning))

	s.Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.Success))

	s.Info = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Semantic.Info))

	s.Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Semantic.Border))

	return s
}

// GetDefaultTheme returns the default Dracula theme
func GetDefaultTheme() *Theme {
	return &Theme{
		Meta: ThemeMeta{
			Name:    "Dracula",
			Author:  "Zeno Rocha",
			Variant: "dark",
		},
		Colors: ThemeColors{
			Background: "#282A36",
			Selection:  "#44475A",
			Foreground: "#F8F8F2",
			Comment:    "#6272A4",
			Red:        "#FF5555",
			Orange:     "#FFB86C",
			Yellow:     "#F1FA8C",
			Green:      "#50FA7B",
			Cyan:       "#8BE9FD",
			Purple:     "#BD93F9",
			Pink:       "#FF79C6",
		},
		Semantic: SemanticColors{
			SidebarBg:          "#282A36",
			SidebarFg:          "#F8F8F2",
			SidebarSelected:    "#44475A",
			SidebarUnread:      "#FF79C6",
			ChatFg:             "#F8F8F2",
			ChatTimestamp:      "#6272A4",
			ChatUsernameSelf:   "#BD93F9",
			ChatUsernameOther:  "#8BE9FD",
			ChatMention:        "#FF79C6",
			ChatPending:        "#6272A4",
			ChatFailed:         "#FF5555",
			InputFg:            "#F8F8F2",
			InputBorder:        "#6272A4",
			InputBorderFocus:   "#BD93F9",
			PopupBg:            "#44475A",
			PopupBorder:        "#BD93F9",
			PopupSelected:      "#6272A4",
			BannerReconnecting: "#F1FA8C",
			BannerOffline:      "#FF5555",
			TransferActive:     "#8BE9FD",
			TransferReady:      "#50FA7B",
			TransferFailed:     "#FF5555",
			Error:              "#FF5555",
			Warning:            "#FFB86C",
			Success:            "#50FA7B",
			Info:               "#8BE9FD",
			Border:             "#6272A4",
		},
	}
}
