package client

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftchat/drift/internal/database"
	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/pipeline"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/driftchat/drift/internal/store"
	"github.com/driftchat/drift/internal/themes"
	"github.com/driftchat/drift/internal/transport"
)

const shutdownTimeout = 3 * time.Second

// connState is the connection banner state
type connState int

const (
	connOnline connState = iota
	connReconnecting
	connOffline
)

// App is the top-level model. It is the single writer: every store
// mutation happens inside Update, and background goroutines only reach it
// through messages.
type App struct {
	width  int
	height int

	screen Screen
	focus  Focus
	popup  Popup

	theme  *themes.Theme
	styles *themes.Styles

	store *store.Store
	conn  *transport.Client
	pipe  *pipeline.Manager
	db    *database.DB
	log   *zap.Logger

	cfgMgr   *ConfigManager
	settings *Settings

	input       textinput.Model
	msgViewport viewport.Model
	ready       bool // viewport sized at least once

	channelIndex int

	connState        connState
	reconnectAttempt int

	statusText string
	statusErr  bool

	// animFrames tracks the current frame of each animated attachment.
	animFrames map[uuid.UUID]int

	// Settings screen
	themeNames    []string
	settingsIndex int

	// Downloads screen
	downloads      []*database.Transfer
	downloadsIndex int

	emojiCodes []string

	quitting bool
}

// Options wires the app's collaborators
type Options struct {
	Store    *store.Store
	Conn     *transport.Client
	Pipeline *pipeline.Manager
	DB       *database.DB
	Config   *ConfigManager
	Settings *Settings
	Theme    *themes.Theme
	Logger   *zap.Logger
}

// NewApp creates the application model
func NewApp(opts Options) *App {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.Width = 50
	input.Focus()

	theme := opts.Theme
	if theme == nil {
		theme = themes.GetDefaultTheme()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &App{
		screen:     ScreenChat,
		focus:      FocusInput,
		theme:      theme,
		styles:     theme.BuildStyles(),
		store:      opts.Store,
		conn:       opts.Conn,
		pipe:       opts.Pipeline,
		db:         opts.DB,
		log:        log,
		cfgMgr:     opts.Config,
		settings:   opts.Settings,
		input:      input,
		animFrames: make(map[uuid.UUID]int),
		themeNames: themes.ListAvailableThemes(),
		emojiCodes: EmojiCodes(),
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		listenTransport(a.conn.Events()),
		listenPipeline(a.pipe.Events()),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := a.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		a.refreshMessages()

	case transportBatchMsg:
		for _, ev := range msg.events {
			if cmd := a.applyTransportEvent(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		a.refreshMessages()
		if !msg.closed {
			cmds = append(cmds, listenTransport(a.conn.Events()))
		}

	case pipelineBatchMsg:
		for _, ev := range msg.events {
			if cmd := a.applyPipelineEvent(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		a.refreshMessages()
		if !msg.closed {
			cmds = append(cmds, listenPipeline(a.pipe.Events()))
		}

	case animTickMsg:
		if cmd := a.advanceFrame(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case historyMsg:
		if msg.err != nil {
			a.setStatus(fmt.Sprintf("history: %v", msg.err), true)
		} else {
			a.store.PrependHistory(msg.channelID, msg.page)
			a.refreshMessages()
		}

	case statusMsg:
		a.setStatus(msg.text, msg.isErr)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	switch a.screen {
	case ScreenSettings:
		return a.renderSettings()
	case ScreenDownloads:
		return a.renderDownloads()
	default:
		return a.renderChat()
	}
}

// --- key handling ---

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	act := Route(key, RouteContext{Screen: a.screen, Focus: a.focus, PopupOpen: a.popup != nil})

	switch act {
	case ActionQuitRequest:
		if a.settings != nil && !a.settings.UI.QuitConfirm {
			return a.shutdown()
		}
		a.popup = &QuitConfirmPopup{}
		return nil

	case ActionCycleFocus:
		a.setFocus(a.focus.Next())
	case ActionCycleFocusBack:
		a.setFocus(a.focus.Prev())

	case ActionOpenSettings:
		a.popup = nil
		a.screen = ScreenSettings
		a.settingsIndex = 0
	case ActionOpenDownloads:
		a.popup = nil
		a.screen = ScreenDownloads
		a.downloadsIndex = 0
		a.loadDownloads()
	case ActionBackToChat:
		a.screen = ScreenChat

	case ActionOpenCreateChannel:
		a.popup = &CreateChannelPopup{}
	case ActionOpenFileManager:
		a.openFileManager()
	case ActionOpenHelp:
		a.popup = &HelpPopup{}

	case ActionPopupClose:
		a.popup = nil
	case ActionPopupPrev:
		a.popupMove(-1)
	case ActionPopupNext:
		a.popupMove(1)
	case ActionPopupAccept:
		return a.popupAccept()
	case ActionPopupAscend:
		if fm, ok := a.popup.(*FileManagerPopup); ok {
			fm.Ascend()
		}

	case ActionMoveUp:
		return a.moveUp()
	case ActionMoveDown:
		a.moveDown()
	case ActionPageUp:
		if atTop := a.msgViewport.AtTop(); atTop {
			return a.requestHistory()
		}
		a.msgViewport.HalfViewUp()
	case ActionPageDown:
		a.msgViewport.HalfViewDown()

	case ActionSelect:
		return a.handleSelect()

	case ActionSubmit:
		return a.handleSubmit()

	case ActionForward:
		return a.forwardKey(msg)
	}
	return nil
}

func (a *App) setFocus(f Focus) {
	a.focus = f
	if f == FocusInput {
		a.input.Focus()
	} else {
		a.input.Blur()
	}
}

func (a *App) moveUp() tea.Cmd {
	switch {
	case a.screen == ScreenSettings:
		if a.settingsIndex > 0 {
			a.settingsIndex--
		}
	case a.screen == ScreenDownloads:
		if a.downloadsIndex > 0 {
			a.downloadsIndex--
		}
	case a.focus == FocusChannelList:
		a.moveChannel(-1)
	case a.focus == FocusMessageView:
		if a.msgViewport.AtTop() {
			return a.requestHistory()
		}
		a.msgViewport.LineUp(1)
	}
	return nil
}

func (a *App) moveDown() {
	switch {
	case a.screen == ScreenSettings:
		// The row after the theme list is the quit-confirm toggle.
		if a.settingsIndex < len(a.themeNames) {
			a.settingsIndex++
		}
	case a.screen == ScreenDownloads:
		if a.downloadsIndex < len(a.downloads)-1 {
			a.downloadsIndex++
		}
	case a.focus == FocusChannelList:
		a.moveChannel(1)
	case a.focus == FocusMessageView:
		a.msgViewport.LineDown(1)
	}
}

func (a *App) moveChannel(delta int) {
	view := a.store.Snapshot()
	n := len(view.Channels)
	if n == 0 {
		return
	}
	a.channelIndex = (a.channelIndex + delta + n) % n
}

func (a *App) handleSelect() tea.Cmd {
	switch a.screen {
	case ScreenSettings:
		if a.settingsIndex < len(a.themeNames) {
			a.applyTheme(a.themeNames[a.settingsIndex])
		} else {
			a.toggleQuitConfirm()
		}
	case ScreenDownloads:
		if a.downloadsIndex < len(a.downloads) {
			return a.retryDownload(a.downloads[a.downloadsIndex])
		}
	default:
		view := a.store.Snapshot()
		if a.channelIndex < len(view.Channels) {
			a.store.SetActive(view.Channels[a.channelIndex].ID)
			a.refreshMessages()
			a.msgViewport.GotoBottom()
		}
	}
	return nil
}

func (a *App) applyTheme(name string) {
	theme, err := themes.GetTheme(name)
	if err != nil {
		a.setStatus(fmt.Sprintf("theme: %v", err), true)
		return
	}
	a.theme = theme
	a.styles = theme.BuildStyles()
	a.settings.UI.Theme = name
	if a.cfgMgr != nil {
		if err := a.cfgMgr.Save(a.settings); err != nil {
			a.log.Warn("failed to save settings", zap.Error(err))
		}
	}
	a.setStatus(fmt.Sprintf("theme set to %s", themes.GetThemeDisplayName(name)), false)
}

func (a *App) toggleQuitConfirm() {
	if a.settings == nil {
		return
	}
	a.settings.UI.QuitConfirm = !a.settings.UI.QuitConfirm
	if a.cfgMgr != nil {
		if err := a.cfgMgr.Save(a.settings); err != nil {
			a.log.Warn("failed to save settings", zap.Error(err))
		}
	}
}

// forwardKey hands a key to whichever text field owns it, then re-evaluates
// completion state.
func (a *App) forwardKey(msg tea.KeyMsg) tea.Cmd {
	switch p := a.popup.(type) {
	case *FileManagerPopup:
		a.editFileFilter(p, msg)
		return nil
	case *CreateChannelPopup:
		a.editChannelForm(p, msg)
		return nil
	case *QuitConfirmPopup:
		switch msg.String() {
		case "y", "Y":
			return a.shutdown()
		case "n", "N":
			a.popup = nil
		}
		return nil
	case *HelpPopup:
		a.popup = nil
		return nil
	}

	if a.focus != FocusInput {
		return nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.syncCompletion(msg)
	return cmd
}

// syncCompletion opens, refilters or closes the completion popup to match
// the text before the cursor.
func (a *App) syncCompletion(msg tea.KeyMsg) {
	// A closing ':' completes the shortcode in place before anything else.
	if msg.String() == ":" {
		if text, cursor, ok := CompleteEmoji(a.input.Value(), a.input.Position()); ok {
			a.input.SetValue(text)
			a.input.SetCursor(cursor)
			a.popup = nil
			return
		}
	}

	trig := DetectTrigger(a.input.Value(), a.input.Position())
	cur, isCompletion := a.popup.(*CompletionPopup)

	switch {
	case trig.Kind == TriggerNone:
		if isCompletion {
			a.popup = nil
		}
	case isCompletion && cur.Trigger.Kind == trig.Kind:
		cur.Refilter(trig)
	case a.popup == nil:
		a.popup = NewCompletionPopup(trig, a.completionCandidates(trig.Kind))
	}
}

func (a *App) completionCandidates(kind TriggerKind) []string {
	if kind == TriggerEmoji {
		return a.emojiCodes
	}
	return a.store.Usernames()
}

func (a *App) popupMove(delta int) {
	switch p := a.popup.(type) {
	case *CompletionPopup:
		p.Move(delta)
	case *FileManagerPopup:
		p.Move(delta)
	case *CreateChannelPopup:
		p.Field = 1 - p.Field
	}
}

func (a *App) popupAccept() tea.Cmd {
	switch p := a.popup.(type) {
	case *CompletionPopup:
		choice := p.Selected()
		if choice == "" {
			a.popup = nil
			return nil
		}
		text, cursor := InsertCompletion(a.input.Value(), p.Trigger, choice)
		a.input.SetValue(text)
		a.input.SetCursor(cursor)
		a.popup = nil

	case *CreateChannelPopup:
		if !p.Validate() {
			return nil
		}
		if err := a.conn.CreateChannel(strings.TrimSpace(p.Name), strings.TrimSpace(p.Icon)); err != nil {
			p.Err = err.Error()
			return nil
		}
		a.popup = nil
		a.setStatus("channel create requested", false)

	case *FileManagerPopup:
		entry := p.Selected()
		if entry == nil {
			return nil
		}
		if entry.IsDir {
			p.ChangeDir(entry.Path)
			return nil
		}
		return a.startUpload(entry.Path)

	case *QuitConfirmPopup:
		return a.shutdown()

	case *HelpPopup:
		a.popup = nil
	}
	return nil
}

func (a *App) editFileFilter(p *FileManagerPopup, msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		p.SetFilter(p.Filter + string(msg.Runes))
	case tea.KeyBackspace:
		if len(p.Filter) > 0 {
			p.SetFilter(p.Filter[:len(p.Filter)-1])
		}
	}
}

func (a *App) editChannelForm(p *CreateChannelPopup, msg tea.KeyMsg) {
	field := &p.Name
	if p.Field == 1 {
		field = &p.Icon
	}
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		*field += string(msg.Runes)
	case tea.KeyBackspace:
		if len(*field) > 0 {
			*field = (*field)[:len(*field)-1]
		}
	}
}

// --- submit and commands ---

func (a *App) handleSubmit() tea.Cmd {
	body := strings.TrimSpace(a.input.Value())
	if body == "" {
		return nil
	}

	if cmd := ParseCommand(body); cmd != nil {
		if handled, teaCmd := a.runCommand(cmd); handled {
			a.input.Reset()
			return teaCmd
		}
		// Unrecognized command: fall through and send as plain text.
	}

	active := a.store.Active()
	if active == uuid.Nil {
		a.setStatus("no channel selected", true)
		return nil
	}

	body = ReplaceShortcodes(body)
	echo := a.store.LocalEcho(active, body)
	a.input.Reset()
	a.refreshMessages()
	a.msgViewport.GotoBottom()

	if err := a.conn.SendMessage(&protocol.SendMessagePayload{
		ChannelID: active,
		Body:      body,
		Nonce:     echo.Nonce,
	}); err != nil {
		a.log.Warn("send failed", zap.Error(err))
	}
	return nil
}

// runCommand executes a slash command. handled=false means the input should
// be sent as a normal message.
func (a *App) runCommand(cmd *Command) (bool, tea.Cmd) {
	switch cmd.Name {
	case "download":
		if len(cmd.Args) != 1 {
			a.setStatus("usage: /download <file-id>", true)
			return true, nil
		}
		return true, a.startDownload(cmd.Args[0])

	case "upload":
		a.openFileManager()
		return true, nil

	case "create":
		p := &CreateChannelPopup{}
		if len(cmd.Args) > 0 {
			p.Name = cmd.Args[0]
		}
		a.popup = p
		return true, nil

	case "theme":
		if len(cmd.Args) == 1 {
			a.applyTheme(cmd.Args[0])
		} else {
			a.screen = ScreenSettings
		}
		return true, nil

	case "quit":
		a.popup = &QuitConfirmPopup{}
		return true, nil
	}
	return false, nil
}

func (a *App) openFileManager() {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "/"
	}
	a.popup = NewFileManagerPopup(dir)
}

// startDownload resolves a file reference and queues the transfer. Nothing
// is sent to the server; the pipeline pulls over HTTP on its own.
func (a *App) startDownload(ref string) tea.Cmd {
	offer := a.resolveOffer(ref)
	if offer == nil {
		a.setStatus(fmt.Sprintf("unknown file %q", ref), true)
		return nil
	}

	attachment := a.store.Attachment(offer.FileID)
	req := pipeline.Request{
		FileID:     offer.FileID,
		Filename:   offer.Filename,
		Size:       offer.Size,
		Checksum:   offer.Checksum,
		RenderCols: a.messageWidth(),
	}
	if attachment != nil {
		req.Image = attachment.IsImage()
		attachment.Status = models.TransferActive
		attachment.Progress = 0
	} else {
		req.Image = models.IsImageFilename(offer.Filename)
	}

	if _, err := a.pipe.Request(req); err != nil {
		a.setStatus(fmt.Sprintf("download: %v", err), true)
		return nil
	}
	a.recordTransfer(offer.FileID, offer.Filename, offer.Size, "download", "active", "", "")
	a.setStatus(fmt.Sprintf("downloading %s", offer.Filename), false)
	a.refreshMessages()
	return nil
}

// retryDownload re-queues a failed download from the transfer history. The
// original offer is preferred when still known, since it carries the
// checksum; otherwise the recorded metadata is enough to pull the file.
func (a *App) retryDownload(t *database.Transfer) tea.Cmd {
	if t == nil || t.Direction != "download" || t.Status != "failed" {
		return nil
	}
	if offer := a.store.FindOffer(t.FileID); offer != nil {
		cmd := a.startDownload(offer.FileID.String())
		a.loadDownloads()
		return cmd
	}

	req := pipeline.Request{
		FileID:     t.FileID,
		Filename:   t.Filename,
		Size:       t.Size,
		Image:      models.IsImageFilename(t.Filename),
		RenderCols: a.messageWidth(),
	}
	if _, err := a.pipe.Request(req); err != nil {
		a.setStatus(fmt.Sprintf("download: %v", err), true)
		return nil
	}
	a.recordTransfer(t.FileID, t.Filename, t.Size, "download", "active", "", "")
	a.loadDownloads()
	a.setStatus(fmt.Sprintf("retrying %s", t.Filename), false)
	return nil
}

// resolveOffer accepts a full file id or an unambiguous prefix
func (a *App) resolveOffer(ref string) *protocol.FileOfferPayload {
	if id, err := uuid.Parse(ref); err == nil {
		return a.store.FindOffer(id)
	}
	var match *protocol.FileOfferPayload
	for _, o := range a.store.Offers() {
		if strings.HasPrefix(o.FileID.String(), strings.ToLower(ref)) {
			if match != nil {
				return nil // ambiguous
			}
			match = o
		}
	}
	return match
}

func (a *App) startUpload(path string) tea.Cmd {
	active := a.store.Active()
	if active == uuid.Nil {
		a.setStatus("no channel selected", true)
		return nil
	}
	if err := a.pipe.Upload(active, path); err != nil {
		a.setStatus(fmt.Sprintf("upload: %v", err), true)
		return nil
	}
	a.popup = nil
	a.setStatus(fmt.Sprintf("uploading %s", path), false)
	return nil
}

func (a *App) requestHistory() tea.Cmd {
	active := a.store.Active()
	if active == uuid.Nil {
		return nil
	}
	msgs := a.store.Messages(active)
	var beforeSeq int64
	for _, m := range msgs {
		if m.Status == models.StatusConfirmed {
			beforeSeq = m.Seq
			break
		}
	}
	if beforeSeq <= 1 {
		return nil
	}
	return fetchHistory(a.settings.Server.Address, a.conn.Token(), active, beforeSeq)
}

// --- event application ---

func (a *App) applyTransportEvent(ev transport.Event) tea.Cmd {
	a.store.Apply(ev)

	switch ev := ev.(type) {
	case transport.ConnectedEvent:
		a.connState = connOnline
		a.reconnectAttempt = 0
		a.setStatus("connected", false)
		if a.store.Active() == uuid.Nil {
			view := a.store.Snapshot()
			if len(view.Channels) > 0 {
				a.store.SetActive(view.Channels[0].ID)
			}
		}

	case transport.ReconnectingEvent:
		a.connState = connReconnecting
		a.reconnectAttempt = ev.Attempt

	case transport.ConnectionLostEvent:
		if ev.Permanent {
			a.connState = connOffline
			a.setStatus("connection lost", true)
		} else {
			a.connState = connReconnecting
		}

	case transport.MessageEvent:
		if ev.Message != nil && ev.Message.ChannelID == a.store.Active() {
			a.msgViewport.GotoBottom()
		}

	case transport.SendFailedEvent:
		a.setStatus(fmt.Sprintf("message rejected: %s", ev.Reason), true)

	case transport.ErrorEvent:
		text := ev.Message
		if text == "" {
			text = protocol.ErrorCodeLabel(ev.Code)
		}
		a.setStatus(fmt.Sprintf("server error: %s", text), true)
	}
	return nil
}

func (a *App) applyPipelineEvent(ev pipeline.Event) tea.Cmd {
	switch ev := ev.(type) {
	case pipeline.ProgressEvent:
		if att := a.store.Attachment(ev.FileID); att != nil {
			att.Status = models.TransferActive
			att.Progress = ev.Percent
		}

	case pipeline.ReadyEvent:
		if att := a.store.Attachment(ev.FileID); att != nil {
			att.Status = models.TransferReady
			att.Progress = 100
			att.Render = ev.Render
		}
		a.updateTransfer(ev.FileID, "ready", "", ev.Path)
		if ev.Render != nil && ev.Render.Animated() {
			a.animFrames[ev.FileID] = 0
			return animTick(ev.FileID, 1, ev.Render.Delay(0))
		}

	case pipeline.FailedEvent:
		if att := a.store.Attachment(ev.FileID); att != nil {
			att.Status = models.TransferFailed
			att.FailedWith = ev.Reason
		}
		a.updateTransfer(ev.FileID, "failed", string(ev.Reason), "")
		a.setStatus(fmt.Sprintf("transfer failed: %s", ev.Reason), true)

	case pipeline.UploadedEvent:
		a.recordTransfer(ev.FileID, ev.Filename, 0, "upload", "ready", "", "")
		a.setStatus(fmt.Sprintf("uploaded %s", ev.Filename), false)

	case pipeline.UploadFailedEvent:
		a.setStatus(fmt.Sprintf("upload failed: %v", ev.Err), true)
	}
	return nil
}

func (a *App) advanceFrame(msg animTickMsg) tea.Cmd {
	att := a.store.Attachment(msg.fileID)
	if att == nil || att.Render == nil || !att.Render.Animated() {
		delete(a.animFrames, msg.fileID)
		return nil
	}
	frame := msg.frame % att.Render.FrameCount()
	a.animFrames[msg.fileID] = frame
	if a.store.FileChannel(msg.fileID) == a.store.Active() {
		a.refreshMessages()
	}
	return animTick(msg.fileID, frame+1, att.Render.Delay(frame))
}

// --- persistence helpers ---

func (a *App) recordTransfer(fileID uuid.UUID, filename string, size int64, direction, status, reason, path string) {
	if a.db == nil {
		return
	}
	err := a.db.RecordTransfer(&database.Transfer{
		FileID:    fileID,
		Filename:  filename,
		Size:      size,
		Direction: direction,
		Status:    status,
		Reason:    reason,
		Path:      path,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		a.log.Warn("failed to record transfer", zap.Error(err))
	}
}

func (a *App) updateTransfer(fileID uuid.UUID, status, reason, path string) {
	if a.db == nil {
		return
	}
	if err := a.db.UpdateStatus(fileID, status, reason, path); err != nil {
		a.log.Warn("failed to update transfer", zap.Error(err))
	}
}

func (a *App) loadDownloads() {
	if a.db == nil {
		return
	}
	rows, err := a.db.ListTransfers(100)
	if err != nil {
		a.log.Warn("failed to list transfers", zap.Error(err))
		return
	}
	a.downloads = rows
}

// --- lifecycle ---

func (a *App) shutdown() tea.Cmd {
	a.quitting = true
	if err := a.conn.Close(shutdownTimeout); err != nil {
		a.log.Warn("transport shutdown", zap.Error(err))
	}
	if err := a.pipe.Close(shutdownTimeout); err != nil {
		a.log.Warn("pipeline shutdown", zap.Error(err))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("database close", zap.Error(err))
		}
	}
	return tea.Quit
}

func (a *App) setStatus(text string, isErr bool) {
	a.statusText = text
	a.statusErr = isErr
}
