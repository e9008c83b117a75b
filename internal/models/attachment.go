package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle of an attachment's file transfer
type TransferStatus int

const (
	TransferNotStarted TransferStatus = iota
	TransferActive
	TransferReady
	TransferFailed
)

// FailReason classifies why a transfer or decode failed
type FailReason string

const (
	FailNetwork     FailReason = "network"
	FailDecode      FailReason = "decode"
	FailUnsupported FailReason = "unsupported-format"
	FailChecksum    FailReason = "checksum"
)

// Attachment is a file referenced by a message. Transfer state is mutated
// only by the foreground loop as pipeline events arrive.
type Attachment struct {
	FileID   uuid.UUID `json:"file_id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`

	// Checksum is the server-supplied BLAKE2b-256 hex digest of the file,
	// verified by the pipeline after download.
	Checksum string `json:"checksum,omitempty"`

	Status     TransferStatus `json:"-"`
	Progress   int            `json:"-"` // 0-100 while Status == TransferActive
	FailedWith FailReason     `json:"-"`

	// Render holds the terminal-cell rendering for image attachments once
	// the transfer is ready; nil for non-image files.
	Render *RenderPayload `json:"-"`
}

// RenderPayload is a decoded image rendered to terminal cells. Animated
// formats carry one entry per frame with its display delay; static images
// have a single frame.
type RenderPayload struct {
	Frames []string
	Delays []time.Duration
}

// FrameCount returns the number of rendered frames
func (r *RenderPayload) FrameCount() int {
	return len(r.Frames)
}

// Animated reports whether the payload cycles through multiple frames
func (r *RenderPayload) Animated() bool {
	return len(r.Frames) > 1
}

// Delay returns the display duration of frame i, with a fallback cadence
// for frames that declare none.
func (r *RenderPayload) Delay(i int) time.Duration {
	if i < len(r.Delays) && r.Delays[i] > 0 {
		return r.Delays[i]
	}
	return 100 * time.Millisecond
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// IsImage reports whether the attachment looks like a renderable image,
// judged by filename extension.
func (a *Attachment) IsImage() bool {
	return IsImageFilename(a.Filename)
}

// IsImageFilename reports whether a filename has a renderable image extension
func IsImageFilename(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}
