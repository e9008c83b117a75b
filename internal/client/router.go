package client

// Screen is the top-level UI screen
type Screen int

const (
	ScreenChat Screen = iota
	ScreenSettings
	ScreenDownloads
)

// Focus is the pane holding keyboard focus on the chat screen
type Focus int

const (
	FocusChannelList Focus = iota
	FocusMessageView
	FocusInput
)

// Next returns the pane after f in the Tab cycle
func (f Focus) Next() Focus {
	switch f {
	case FocusChannelList:
		return FocusMessageView
	case FocusMessageView:
		return FocusInput
	default:
		return FocusChannelList
	}
}

// Prev returns the pane before f in the Tab cycle
func (f Focus) Prev() Focus {
	switch f {
	case FocusChannelList:
		return FocusInput
	case FocusInput:
		return FocusMessageView
	default:
		return FocusChannelList
	}
}

// Action is what a key press resolves to once screen, focus and popup state
// are taken into account
type Action int

const (
	ActionNone Action = iota

	// Global
	ActionQuitRequest // quit, or open the quit confirm popup
	ActionCycleFocus
	ActionCycleFocusBack
	ActionOpenSettings
	ActionOpenDownloads
	ActionBackToChat
	ActionOpenCreateChannel
	ActionOpenFileManager
	ActionOpenHelp

	// Popup
	ActionPopupPrev
	ActionPopupNext
	ActionPopupAccept
	ActionPopupClose
	ActionPopupAscend // file manager: parent directory

	// Lists and scrollback
	ActionMoveUp
	ActionMoveDown
	ActionPageUp
	ActionPageDown
	ActionSelect

	// Input
	ActionSubmit
	ActionForward // hand the key to the focused text input
)

// RouteContext is the state the router needs to resolve a key
type RouteContext struct {
	Screen    Screen
	Focus     Focus
	PopupOpen bool
}

// Route maps a key press to an action. The precedence is fixed: screen
// switches work from anywhere, an open popup captures navigation before
// the focused pane does, and Esc closes the popup before anything else.
func Route(key string, ctx RouteContext) Action {
	// Screen switches are unconditional; they close any open popup.
	switch key {
	case "ctrl+s":
		return ActionOpenSettings
	case "ctrl+d":
		return ActionOpenDownloads
	}

	// A popup owns navigation keys regardless of screen or focus.
	if ctx.PopupOpen {
		switch key {
		case "esc":
			return ActionPopupClose
		case "up", "ctrl+p":
			return ActionPopupPrev
		case "down", "ctrl+n", "tab":
			return ActionPopupNext
		case "enter":
			return ActionPopupAccept
		case "left":
			return ActionPopupAscend
		case "ctrl+c":
			return ActionQuitRequest
		default:
			return ActionForward
		}
	}

	switch key {
	case "ctrl+c", "ctrl+q":
		return ActionQuitRequest
	}

	switch ctx.Screen {
	case ScreenSettings, ScreenDownloads:
		switch key {
		case "esc":
			return ActionBackToChat
		case "up", "k":
			return ActionMoveUp
		case "down", "j":
			return ActionMoveDown
		case "enter":
			return ActionSelect
		}
		return ActionNone
	}

	// Chat screen.
	switch key {
	case "tab":
		return ActionCycleFocus
	case "shift+tab":
		return ActionCycleFocusBack
	case "ctrl+n":
		return ActionOpenCreateChannel
	case "ctrl+u":
		return ActionOpenFileManager
	case "f1":
		return ActionOpenHelp
	case "esc":
		return ActionQuitRequest
	}

	switch ctx.Focus {
	case FocusChannelList:
		switch key {
		case "up", "k":
			return ActionMoveUp
		case "down", "j":
			return ActionMoveDown
		case "enter":
			return ActionSelect
		}
	case FocusMessageView:
		switch key {
		case "up", "k":
			return ActionMoveUp
		case "down", "j":
			return ActionMoveDown
		case "pgup":
			return ActionPageUp
		case "pgdown":
			return ActionPageDown
		}
	case FocusInput:
		switch key {
		case "enter":
			return ActionSubmit
		default:
			return ActionForward
		}
	}
	return ActionNone
}
