package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/driftchat/drift/internal/models"
)

const (
	sidebarMinWidth = 20
	inputReserved   = 3 // input box rows
	chromeReserved  = 2 // banner + status rows
)

// resize recomputes widget dimensions after a window size change
func (a *App) resize() {
	sidebarWidth := a.width / 5
	if sidebarWidth < sidebarMinWidth {
		sidebarWidth = sidebarMinWidth
	}
	chatWidth := a.width - sidebarWidth - 2
	chatHeight := a.height - inputReserved - chromeReserved
	if chatWidth < 10 {
		chatWidth = 10
	}
	if chatHeight < 3 {
		chatHeight = 3
	}

	if !a.ready {
		a.msgViewport = viewport.New(chatWidth, chatHeight)
		a.ready = true
	} else {
		a.msgViewport.Width = chatWidth
		a.msgViewport.Height = chatHeight
	}
	a.input.Width = chatWidth - 4
}

func (a *App) sidebarWidth() int {
	w := a.width / 5
	if w < sidebarMinWidth {
		w = sidebarMinWidth
	}
	return w
}

// messageWidth is the usable column count inside the message view
func (a *App) messageWidth() int {
	if !a.ready {
		return 80
	}
	return a.msgViewport.Width
}

// refreshMessages rebuilds the viewport content from a store snapshot
func (a *App) refreshMessages() {
	if !a.ready {
		return
	}
	view := a.store.Snapshot()
	atBottom := a.msgViewport.AtBottom()

	var b strings.Builder
	var prevAuthor string
	for i := range view.Messages {
		msg := &view.Messages[i]
		a.renderMessage(&b, msg, prevAuthor)
		prevAuthor = msg.AuthorID.String()
	}
	a.msgViewport.SetContent(b.String())
	if atBottom {
		a.msgViewport.GotoBottom()
	}
}

func (a *App) renderMessage(b *strings.Builder, msg *models.Message, prevAuthor string) {
	authorName := "unknown"
	if u := a.store.User(msg.AuthorID); u != nil {
		authorName = u.GetDisplayName()
	}

	if msg.AuthorID.String() != prevAuthor {
		authorStyle := a.styles.UsernameOther
		if self := a.store.Self(); self != nil && msg.AuthorID == self.ID {
			authorStyle = a.styles.UsernameSelf
		}
		timestamp := msg.CreatedAt.Format("15:04")
		if a.settings != nil && a.settings.UI.TimestampStyle == "full" {
			timestamp = msg.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(b, "%s  %s\n",
			authorStyle.Render(authorName),
			a.styles.Timestamp.Render(timestamp))
	}

	line := a.styles.MessageContent.Render(msg.Body)
	switch msg.Status {
	case models.StatusPendingLocal:
		line = a.styles.PendingMessage.Render(msg.Body + " …")
	case models.StatusFailed:
		line = a.styles.FailedMessage.Render(msg.Body + " ✗ not delivered")
	}
	b.WriteString(line)
	b.WriteString("\n")

	if msg.Attachment != nil {
		a.renderAttachment(b, msg.Attachment)
	}
}

func (a *App) renderAttachment(b *strings.Builder, att *models.Attachment) {
	switch att.Status {
	case models.TransferNotStarted:
		short := att.FileID.String()[:8]
		b.WriteString(a.styles.SystemMessage.Render(
			fmt.Sprintf("📎 %s (%s) — /download %s", att.Filename, humanSize(att.Size), short)))
		b.WriteString("\n")

	case models.TransferActive:
		b.WriteString(a.styles.TransferActive.Render(
			fmt.Sprintf("⇣ %s %s", att.Filename, progressBar(att.Progress, 20))))
		b.WriteString("\n")

	case models.TransferReady:
		if att.Render != nil {
			frame := a.animFrames[att.FileID]
			if frame >= att.Render.FrameCount() {
				frame = 0
			}
			b.WriteString(att.Render.Frames[frame])
			if !strings.HasSuffix(att.Render.Frames[frame], "\n") {
				b.WriteString("\n")
			}
		} else {
			b.WriteString(a.styles.TransferReady.Render(
				fmt.Sprintf("✓ %s saved", att.Filename)))
			b.WriteString("\n")
		}

	case models.TransferFailed:
		b.WriteString(a.styles.TransferFailed.Render(
			fmt.Sprintf("✗ %s failed (%s)", att.Filename, att.FailedWith)))
		b.WriteString("\n")
	}
}

func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		percent)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// --- chat screen ---

func (a *App) renderChat() string {
	if a.width == 0 {
		return "Loading..."
	}

	sidebar := a.renderSidebar()
	chat := a.renderChatColumn()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chat)

	sections := []string{}
	if banner := a.renderBanner(); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, body, a.renderStatusLine())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderSidebar() string {
	view := a.store.Snapshot()
	width := a.sidebarWidth()

	var b strings.Builder
	b.WriteString(a.styles.SidebarItem.Bold(true).Render("Channels"))
	b.WriteString("\n\n")

	for i, ch := range view.Channels {
		label := ch.Name
		if ch.Icon != "" {
			label = ch.Icon + " " + label
		}
		if ch.UnreadCount > 0 {
			label = fmt.Sprintf("%s %s", label,
				a.styles.SidebarUnread.Render(fmt.Sprintf("(%d)", ch.UnreadCount)))
		}
		style := a.styles.SidebarItem
		if ch.ID == view.Active {
			style = a.styles.SidebarSelected
		} else if i == a.channelIndex && a.focus == FocusChannelList {
			style = a.styles.SidebarSelected.Bold(false)
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
	}

	height := a.height - chromeReserved
	return a.styles.SidebarContainer.Width(width).Height(height).Render(b.String())
}

func (a *App) renderChatColumn() string {
	inputStyle := a.styles.InputField
	if a.focus == FocusInput {
		inputStyle = a.styles.InputFocused
	}
	messages := a.msgViewport.View()
	if a.popup != nil {
		// The popup floats over the message area; the sidebar, input box
		// and status line stay visible around it.
		messages = lipgloss.Place(a.msgViewport.Width, a.msgViewport.Height,
			lipgloss.Center, lipgloss.Center, a.renderPopup())
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		messages,
		inputStyle.Width(a.msgViewport.Width-2).Render(a.input.View()),
	)
}

func (a *App) renderBanner() string {
	switch a.connState {
	case connReconnecting:
		return a.styles.BannerReconnecting.Width(a.width).Render(
			fmt.Sprintf("Reconnecting… (attempt %d)", a.reconnectAttempt))
	case connOffline:
		return a.styles.BannerOffline.Width(a.width).Render(
			"Connection lost — could not reconnect. Messages will not be delivered.")
	}
	return ""
}

func (a *App) renderStatusLine() string {
	if a.statusText == "" {
		help := "F1: help  •  Tab: focus  •  Ctrl+N: new channel  •  Ctrl+U: upload  •  Ctrl+S: settings  •  Ctrl+D: downloads"
		return a.styles.Timestamp.Render(help)
	}
	if a.statusErr {
		return a.styles.Error.Render(a.statusText)
	}
	return a.styles.Info.Render(a.statusText)
}

// --- popups ---

func (a *App) renderPopup() string {
	switch p := a.popup.(type) {
	case *CompletionPopup:
		return a.renderCompletionPopup(p)
	case *CreateChannelPopup:
		return a.renderCreateChannelPopup(p)
	case *FileManagerPopup:
		return a.renderFileManagerPopup(p)
	case *QuitConfirmPopup:
		return a.styles.Popup.Render("Quit Drift?\n\n[y] yes   [n] no")
	case *HelpPopup:
		return a.renderHelpPopup()
	}
	return ""
}

func (a *App) renderHelpPopup() string {
	rows := []struct{ key, what string }{
		{"Tab / Shift+Tab", "cycle focus between panes"},
		{"Ctrl+N", "create a channel"},
		{"Ctrl+U", "upload a file"},
		{"Ctrl+S", "settings"},
		{"Ctrl+D", "transfers"},
		{"PgUp / PgDn", "scroll history"},
		{"@ / :", "mention and emoji completion"},
		{"/download <id>", "fetch an offered file"},
		{"/theme <name>", "switch theme"},
		{"/quit", "exit"},
		{"Esc", "close popup, or quit from chat"},
	}

	var b strings.Builder
	b.WriteString(a.styles.PopupItem.Bold(true).Render("Keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s  %s\n",
			a.styles.PopupSelected.Render(fmt.Sprintf("%-16s", r.key)),
			a.styles.PopupItem.Render(r.what))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Timestamp.Render("any key to close"))
	return a.styles.Popup.Render(b.String())
}

const popupMaxRows = 8

func (a *App) renderCompletionPopup(p *CompletionPopup) string {
	title := "Mention"
	if p.Trigger.Kind == TriggerEmoji {
		title = "Emoji"
	}

	var b strings.Builder
	b.WriteString(a.styles.PopupItem.Bold(true).Render(title))
	b.WriteString("\n")
	if len(p.Choices) == 0 {
		b.WriteString(a.styles.Timestamp.Render("no matches"))
	}

	start := 0
	if p.Index >= popupMaxRows {
		start = p.Index - popupMaxRows + 1
	}
	for i := start; i < len(p.Choices) && i < start+popupMaxRows; i++ {
		style := a.styles.PopupItem
		if i == p.Index {
			style = a.styles.PopupSelected
		}
		b.WriteString(style.Render(p.Choices[i]))
		b.WriteString("\n")
	}
	return a.styles.Popup.Render(strings.TrimRight(b.String(), "\n"))
}

func (a *App) renderCreateChannelPopup(p *CreateChannelPopup) string {
	var b strings.Builder
	b.WriteString(a.styles.PopupItem.Bold(true).Render("Create Channel"))
	b.WriteString("\n\n")

	nameStyle, iconStyle := a.styles.PopupSelected, a.styles.PopupItem
	if p.Field == 1 {
		nameStyle, iconStyle = a.styles.PopupItem, a.styles.PopupSelected
	}
	fmt.Fprintf(&b, "%s %s\n", nameStyle.Render("Name:"), p.Name+"▏")
	fmt.Fprintf(&b, "%s %s\n", iconStyle.Render("Icon:"), p.Icon)

	if p.Err != "" {
		b.WriteString("\n")
		b.WriteString(a.styles.Error.Render(p.Err))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Timestamp.Render("Tab: field  •  Enter: create  •  Esc: cancel"))
	return a.styles.Popup.Render(b.String())
}

func (a *App) renderFileManagerPopup(p *FileManagerPopup) string {
	var b strings.Builder
	b.WriteString(a.styles.PopupItem.Bold(true).Render("Upload — " + p.Dir))
	b.WriteString("\n")
	if p.Filter != "" {
		b.WriteString(a.styles.Info.Render("filter: " + p.Filter))
		b.WriteString("\n")
	}
	if p.Err != "" {
		b.WriteString(a.styles.Error.Render(p.Err))
		b.WriteString("\n")
	}

	start := 0
	if p.Index >= popupMaxRows {
		start = p.Index - popupMaxRows + 1
	}
	for i := start; i < len(p.Visible) && i < start+popupMaxRows; i++ {
		e := p.Visible[i]
		label := e.Name
		if e.IsDir {
			label += "/"
		} else {
			label = fmt.Sprintf("%s  %s", label, humanSize(e.Size))
		}
		style := a.styles.PopupItem
		if i == p.Index {
			style = a.styles.PopupSelected
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Timestamp.Render("type to filter  •  ←: up dir  •  Enter: select  •  Esc: cancel"))
	return a.styles.Popup.Render(b.String())
}

// --- settings screen ---

func (a *App) renderSettings() string {
	var b strings.Builder
	b.WriteString(a.styles.PopupItem.Bold(true).Render("Settings — Theme"))
	b.WriteString("\n\n")
	for i, name := range a.themeNames {
		label := name
		if a.settings != nil && name == a.settings.UI.Theme {
			label += "  ●"
		}
		style := a.styles.PopupItem
		if i == a.settingsIndex {
			style = a.styles.PopupSelected
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
	}

	toggle := "Confirm on quit: off"
	if a.settings == nil || a.settings.UI.QuitConfirm {
		toggle = "Confirm on quit: on"
	}
	style := a.styles.PopupItem
	if a.settingsIndex == len(a.themeNames) {
		style = a.styles.PopupSelected
	}
	b.WriteString("\n")
	b.WriteString(style.Render(toggle))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Timestamp.Render("Enter: apply  •  Esc: back"))
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
		a.styles.Border.Padding(1, 2).Render(b.String()))
}

// --- downloads screen ---

func (a *App) renderDownloads() string {
	var b strings.Builder
	b.WriteString(a.styles.PopupItem.Bold(true).Render("Transfers"))
	b.WriteString("\n\n")

	if len(a.downloads) == 0 {
		b.WriteString(a.styles.Timestamp.Render("nothing yet"))
	}
	for i, t := range a.downloads {
		var statusStyle lipgloss.Style
		switch t.Status {
		case "ready":
			statusStyle = a.styles.TransferReady
		case "failed":
			statusStyle = a.styles.TransferFailed
		default:
			statusStyle = a.styles.TransferActive
		}
		status := t.Status
		if t.Reason != "" {
			status = fmt.Sprintf("%s (%s)", t.Status, t.Reason)
		}
		line := fmt.Sprintf("%-10s %-30s %10s  %s",
			t.Direction, t.Filename, humanSize(t.Size), statusStyle.Render(status))
		style := a.styles.PopupItem
		if i == a.downloadsIndex {
			style = a.styles.PopupSelected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Timestamp.Render("Enter: retry failed  •  Esc: back"))
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
		a.styles.Border.Padding(1, 2).Render(b.String()))
}
