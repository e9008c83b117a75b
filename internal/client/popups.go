package client

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Popup is the closed set of modal overlays. At most one popup is open at a
// time; an open popup captures navigation keys before any other surface.
type Popup interface {
	isPopup()
}

// CompletionPopup suggests completions for an active input trigger. It
// backs both the mention and emoji popups; Kind tells them apart.
type CompletionPopup struct {
	Trigger Trigger
	Choices []string
	Index   int

	// all is the unfiltered candidate set the query filters against.
	all []string
}

func (*CompletionPopup) isPopup() {}

// NewCompletionPopup creates a popup over the candidate set, filtered by
// the trigger's query.
func NewCompletionPopup(trig Trigger, candidates []string) *CompletionPopup {
	p := &CompletionPopup{Trigger: trig, all: candidates}
	p.Refilter(trig)
	return p
}

// Refilter re-runs the filter for an updated trigger, clamping selection
func (p *CompletionPopup) Refilter(trig Trigger) {
	p.Trigger = trig
	p.Choices = FilterCandidates(p.all, trig.Query)
	if p.Index >= len(p.Choices) {
		p.Index = 0
	}
}

// Move shifts the selection by delta, wrapping
func (p *CompletionPopup) Move(delta int) {
	if len(p.Choices) == 0 {
		return
	}
	p.Index = (p.Index + delta + len(p.Choices)) % len(p.Choices)
}

// Selected returns the highlighted choice, or "" when the list is empty
func (p *CompletionPopup) Selected() string {
	if p.Index < 0 || p.Index >= len(p.Choices) {
		return ""
	}
	return p.Choices[p.Index]
}

// CreateChannelPopup collects the name and icon for a new channel
type CreateChannelPopup struct {
	Name  string
	Icon  string
	Field int // 0 = name, 1 = icon
	Err   string
}

func (*CreateChannelPopup) isPopup() {}

// Validate checks the form and records a user-facing error
func (p *CreateChannelPopup) Validate() bool {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		p.Err = "channel name is required"
	case len(name) > 64:
		p.Err = "channel name is too long"
	case strings.ContainsAny(name, " \t"):
		p.Err = "channel name cannot contain spaces"
	default:
		p.Err = ""
		return true
	}
	return false
}

// FileEntry is one row in the file manager popup
type FileEntry struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
}

// FileManagerPopup browses the local filesystem to pick a file for upload
type FileManagerPopup struct {
	Dir     string
	Filter  string
	Entries []FileEntry // all entries in Dir
	Visible []FileEntry // entries matching Filter
	Index   int
	Err     string
}

func (*FileManagerPopup) isPopup() {}

// NewFileManagerPopup opens the popup at the given directory
func NewFileManagerPopup(dir string) *FileManagerPopup {
	p := &FileManagerPopup{}
	p.ChangeDir(dir)
	return p
}

// ChangeDir loads a directory's entries, directories first
func (p *FileManagerPopup) ChangeDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.Err = err.Error()
		return
	}
	p.Dir = dir
	p.Err = ""
	p.Filter = ""
	p.Index = 0
	p.Entries = p.Entries[:0]

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		entry := FileEntry{
			Name:  e.Name(),
			Path:  filepath.Join(dir, e.Name()),
			IsDir: e.IsDir(),
		}
		if info, err := e.Info(); err == nil {
			entry.Size = info.Size()
		}
		p.Entries = append(p.Entries, entry)
	}
	sort.Slice(p.Entries, func(i, j int) bool {
		if p.Entries[i].IsDir != p.Entries[j].IsDir {
			return p.Entries[i].IsDir
		}
		return p.Entries[i].Name < p.Entries[j].Name
	})
	p.refilter()
}

// SetFilter updates the fuzzy filter over the current directory
func (p *FileManagerPopup) SetFilter(filter string) {
	p.Filter = filter
	p.Index = 0
	p.refilter()
}

func (p *FileManagerPopup) refilter() {
	if p.Filter == "" {
		p.Visible = append(p.Visible[:0], p.Entries...)
		return
	}
	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Name
	}
	matches := fuzzy.Find(p.Filter, names)
	p.Visible = p.Visible[:0]
	for _, m := range matches {
		p.Visible = append(p.Visible, p.Entries[m.Index])
	}
}

// Move shifts the selection by delta, clamping to the visible list
func (p *FileManagerPopup) Move(delta int) {
	if len(p.Visible) == 0 {
		return
	}
	p.Index += delta
	if p.Index < 0 {
		p.Index = 0
	}
	if p.Index >= len(p.Visible) {
		p.Index = len(p.Visible) - 1
	}
}

// Selected returns the highlighted entry, or nil
func (p *FileManagerPopup) Selected() *FileEntry {
	if p.Index < 0 || p.Index >= len(p.Visible) {
		return nil
	}
	return &p.Visible[p.Index]
}

// Ascend moves to the parent directory
func (p *FileManagerPopup) Ascend() {
	parent := filepath.Dir(p.Dir)
	if parent != p.Dir {
		p.ChangeDir(parent)
	}
}

// QuitConfirmPopup asks before exiting
type QuitConfirmPopup struct{}

func (*QuitConfirmPopup) isPopup() {}

// HelpPopup lists the keybindings; any key dismisses it
type HelpPopup struct{}

func (*HelpPopup) isPopup() {}
