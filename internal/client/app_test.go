package client

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/drift/internal/database"
	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/pipeline"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/driftchat/drift/internal/store"
	"github.com/driftchat/drift/internal/transport"
)

func newTestApp(t *testing.T) (*App, *store.Store, *transport.Client) {
	t.Helper()
	st := store.New()
	// Never connected: sends queue as pending, which is what the offline
	// scenarios need.
	conn := transport.NewClient("ws://127.0.0.1:1/ws", "token", nil, nil)
	pipe := pipeline.NewManager(pipeline.Config{
		BaseURL:     "http://127.0.0.1:1",
		DownloadDir: t.TempDir(),
	})
	t.Cleanup(func() { pipe.Close(3 * time.Second) })

	app := NewApp(Options{
		Store:    st,
		Conn:     conn,
		Pipeline: pipe,
		Settings: DefaultSettings(),
	})
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, st, conn
}

func typeString(app *App, s string) {
	for _, r := range s {
		if r == ' ' {
			app.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func pressKey(app *App, keyType tea.KeyType) {
	app.Update(tea.KeyMsg{Type: keyType})
}

func seedUsers(st *store.Store, names ...string) {
	ch := uuid.New()
	for _, name := range names {
		st.Apply(transport.UserJoinedEvent{
			ChannelID: ch,
			User:      &models.User{ID: uuid.New(), Username: name},
		})
	}
}

func seedChannel(st *store.Store, name string) *models.Channel {
	ch := models.NewChannel(name, "")
	st.Apply(transport.ChannelCreatedEvent{Channel: ch})
	st.SetActive(ch.ID)
	return ch
}

func TestMentionPopupSuggestions(t *testing.T) {
	app, st, _ := newTestApp(t)
	seedUsers(st, "zoe", "alice", "albert")

	typeString(app, "@al")

	popup, ok := app.popup.(*CompletionPopup)
	require.True(t, ok, "mention popup should be open")
	assert.Equal(t, TriggerMention, popup.Trigger.Kind)
	assert.Equal(t, []string{"albert", "alice"}, popup.Choices)

	// Accepting a suggestion rewrites the input.
	pressKey(app, tea.KeyEnter)
	assert.Nil(t, app.popup)
	assert.Equal(t, "@albert ", app.input.Value())
}

func TestMentionTriggerIgnoredMidWord(t *testing.T) {
	app, st, _ := newTestApp(t)
	seedUsers(st, "alice")

	typeString(app, "user@al")
	assert.Nil(t, app.popup, "no popup for an email-style @")
}

func TestEmojiAutoCompleteOnClosingColon(t *testing.T) {
	app, _, _ := newTestApp(t)

	typeString(app, "cheers :beer")
	require.IsType(t, &CompletionPopup{}, app.popup)

	typeString(app, ":")
	assert.Nil(t, app.popup)
	assert.Equal(t, "cheers 🍺", app.input.Value())
}

func TestEscClosesPopupBeforeAnythingElse(t *testing.T) {
	app, st, _ := newTestApp(t)
	seedUsers(st, "alice")

	typeString(app, "@")
	require.NotNil(t, app.popup)

	pressKey(app, tea.KeyEsc)
	assert.Nil(t, app.popup)
	assert.Equal(t, FocusInput, app.focus, "closing a popup must not move focus")
	assert.Equal(t, "@", app.input.Value(), "closing a popup must not edit the input")
}

func TestTabCyclesFocus(t *testing.T) {
	app, _, _ := newTestApp(t)
	require.Equal(t, FocusInput, app.focus)

	pressKey(app, tea.KeyTab)
	assert.Equal(t, FocusChannelList, app.focus)
	pressKey(app, tea.KeyTab)
	assert.Equal(t, FocusMessageView, app.focus)
	pressKey(app, tea.KeyTab)
	assert.Equal(t, FocusInput, app.focus)

	pressKey(app, tea.KeyShiftTab)
	assert.Equal(t, FocusMessageView, app.focus)
}

func TestDownloadCommandSendsNothing(t *testing.T) {
	app, st, conn := newTestApp(t)
	seedChannel(st, "general")

	fileID := uuid.New()
	st.Apply(transport.FileOfferEvent{Offer: &protocol.FileOfferPayload{
		ChannelID: st.Active(),
		FileID:    fileID,
		Filename:  "notes.txt",
		Size:      64,
	}})

	typeString(app, "/download "+fileID.String()[:8])
	pressKey(app, tea.KeyEnter)

	// The transfer is local: nothing is queued on the chat connection.
	assert.Equal(t, 0, conn.PendingCount())
	assert.Empty(t, st.Messages(st.Active()), "no message should be created")
	assert.Contains(t, app.statusText, "downloading")
	assert.Empty(t, app.input.Value())
}

func TestDownloadUnknownFile(t *testing.T) {
	app, st, _ := newTestApp(t)
	seedChannel(st, "general")

	typeString(app, "/download deadbeef")
	pressKey(app, tea.KeyEnter)

	assert.True(t, app.statusErr)
	assert.Contains(t, app.statusText, "unknown file")
}

func TestUnrecognizedSlashInputSentAsText(t *testing.T) {
	app, st, conn := newTestApp(t)
	seedChannel(st, "general")

	typeString(app, "/dance hard")
	pressKey(app, tea.KeyEnter)

	msgs := st.Messages(st.Active())
	require.Len(t, msgs, 1)
	assert.Equal(t, "/dance hard", msgs[0].Body)
	assert.Equal(t, models.StatusPendingLocal, msgs[0].Status)
	assert.Equal(t, 1, conn.PendingCount())
}

func TestOfflineSendsConfirmInOriginalOrder(t *testing.T) {
	app, st, conn := newTestApp(t)
	seedChannel(st, "general")

	for _, body := range []string{"one", "two", "three"} {
		typeString(app, body)
		pressKey(app, tea.KeyEnter)
	}
	require.Equal(t, 3, conn.PendingCount())

	pending := st.Messages(st.Active())
	require.Len(t, pending, 3)

	// Confirmations arrive in send order after the session is restored.
	var events []transport.Event
	for i, p := range pending {
		events = append(events, transport.MessageEvent{Message: &models.Message{
			ID:        uuid.New(),
			ChannelID: st.Active(),
			AuthorID:  p.AuthorID,
			Seq:       int64(i + 1),
			Body:      p.Body,
			Nonce:     p.Nonce,
			Status:    models.StatusConfirmed,
		}})
	}
	app.Update(transportBatchMsg{events: events})

	msgs := st.Messages(st.Active())
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"one", "two", "three"},
		[]string{msgs[0].Body, msgs[1].Body, msgs[2].Body})
	for _, m := range msgs {
		assert.Equal(t, models.StatusConfirmed, m.Status)
	}
}

func TestCtrlNOpensCreateChannel(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.IsType(t, &CreateChannelPopup{}, app.popup)

	typeString(app, "dev")
	pressKey(app, tea.KeyEsc)
	assert.Nil(t, app.popup)
}

func TestCtrlUOpensFileManager(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	require.IsType(t, &FileManagerPopup{}, app.popup)
}

func TestScreenSwitchClosesPopup(t *testing.T) {
	app, st, _ := newTestApp(t)
	seedUsers(st, "alice")

	typeString(app, "@")
	require.NotNil(t, app.popup)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, ScreenSettings, app.screen)
	assert.Nil(t, app.popup, "switching screens must close the open popup")

	pressKey(app, tea.KeyEsc)
	assert.Equal(t, ScreenChat, app.screen)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, ScreenDownloads, app.screen)
}

func TestEscAtTopLevelRequestsQuit(t *testing.T) {
	app, _, _ := newTestApp(t)
	require.Nil(t, app.popup)

	pressKey(app, tea.KeyEsc)
	require.IsType(t, &QuitConfirmPopup{}, app.popup)
}

func TestQuitConfirmDisabledQuitsDirectly(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.settings.UI.QuitConfirm = false

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, app.popup)
	assert.True(t, app.quitting)
}

func TestQuitRequiresConfirmation(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.IsType(t, &QuitConfirmPopup{}, app.popup)

	// Declining keeps the app running.
	typeString(app, "n")
	assert.Nil(t, app.popup)
	assert.False(t, app.quitting)
}

func TestEnterRetriesFailedDownload(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "drift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New()
	conn := transport.NewClient("ws://127.0.0.1:1/ws", "token", nil, nil)
	pipe := pipeline.NewManager(pipeline.Config{
		BaseURL:     "http://127.0.0.1:1",
		DownloadDir: t.TempDir(),
	})
	t.Cleanup(func() { pipe.Close(3 * time.Second) })

	app := NewApp(Options{
		Store:    st,
		Conn:     conn,
		Pipeline: pipe,
		DB:       db,
		Settings: DefaultSettings(),
	})
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	fileID := uuid.New()
	require.NoError(t, db.RecordTransfer(&database.Transfer{
		FileID:    fileID,
		Filename:  "report.pdf",
		Size:      2048,
		Direction: "download",
		Status:    "failed",
		Reason:    "checksum mismatch",
		UpdatedAt: time.Now(),
	}))

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	require.Equal(t, ScreenDownloads, app.screen)
	require.Len(t, app.downloads, 1)

	pressKey(app, tea.KeyEnter)

	assert.Contains(t, app.statusText, "retrying")
	row, err := db.GetTransfer(fileID)
	require.NoError(t, err)
	assert.Equal(t, "active", row.Status)
}

func TestRetrySkipsTransfersThatDidNotFail(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.downloads = []*database.Transfer{{
		FileID:    uuid.New(),
		Filename:  "photo.png",
		Direction: "download",
		Status:    "ready",
	}}
	app.screen = ScreenDownloads
	app.downloadsIndex = 0

	pressKey(app, tea.KeyEnter)
	assert.Empty(t, app.statusText)
}

func TestServerErrorShownInStatus(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(transportBatchMsg{events: []transport.Event{
		transport.ErrorEvent{Code: protocol.ErrorCodeRateLimited},
	}})
	assert.True(t, app.statusErr)
	assert.Contains(t, app.statusText, "rate limited")

	app.Update(transportBatchMsg{events: []transport.Event{
		transport.ErrorEvent{Code: protocol.ErrorCodeNotFound, Message: "no such channel"},
	}})
	assert.Contains(t, app.statusText, "no such channel")
}

func TestPopupKeepsChatChromeVisible(t *testing.T) {
	app, st, _ := newTestApp(t)
	seedChannel(st, "general")

	pressKey(app, tea.KeyEsc)
	require.IsType(t, &QuitConfirmPopup{}, app.popup)

	view := app.View()
	assert.Contains(t, view, "Quit Drift?")
	assert.Contains(t, view, "Channels", "sidebar must stay visible behind the popup")
}

func TestHelpPopupOpensAndCloses(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyF1})
	require.IsType(t, &HelpPopup{}, app.popup)
	assert.Contains(t, app.View(), "Keys")

	// Any key dismisses it.
	typeString(app, "x")
	assert.Nil(t, app.popup)
	assert.Empty(t, app.input.Value(), "the dismissing key must not reach the input")
}

func TestConnectionBannerStates(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(transportBatchMsg{events: []transport.Event{
		transport.ReconnectingEvent{Attempt: 2},
	}})
	assert.Equal(t, connReconnecting, app.connState)
	assert.Equal(t, 2, app.reconnectAttempt)

	app.Update(transportBatchMsg{events: []transport.Event{
		transport.ConnectionLostEvent{Permanent: true},
	}})
	assert.Equal(t, connOffline, app.connState)
}
