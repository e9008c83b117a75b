// Package pipeline runs file transfers and image decoding off the
// interactive path. A bounded worker pool services a FIFO request queue;
// progress and completion are reported as events the foreground loop drains
// alongside transport events. A failed or malformed transfer marks itself
// failed with a reason; it never takes the interactive loop down.
package pipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/driftchat/drift/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull is returned when the request queue is saturated
var ErrQueueFull = errors.New("pipeline: transfer queue full")

// Event is a pipeline progress or completion notification
type Event interface {
	isPipelineEvent()
}

// ProgressEvent reports transfer progress in percent (0-100)
type ProgressEvent struct {
	FileID  uuid.UUID
	Percent int
}

// ReadyEvent reports a completed download. Render is non-nil for image
// attachments.
type ReadyEvent struct {
	FileID uuid.UUID
	Path   string
	Render *models.RenderPayload
}

// FailedEvent reports a failed transfer with its classified reason
type FailedEvent struct {
	FileID uuid.UUID
	Reason models.FailReason
	Err    error
}

// UploadedEvent reports a completed upload; the server assigns the file id
type UploadedEvent struct {
	ChannelID uuid.UUID
	FileID    uuid.UUID
	Filename  string
}

// UploadFailedEvent reports a failed upload
type UploadFailedEvent struct {
	ChannelID uuid.UUID
	Filename  string
	Err       error
}

func (ProgressEvent) isPipelineEvent()     {}
func (ReadyEvent) isPipelineEvent()        {}
func (FailedEvent) isPipelineEvent()       {}
func (UploadedEvent) isPipelineEvent()     {}
func (UploadFailedEvent) isPipelineEvent() {}

// TransferHandle identifies a queued or running transfer
type TransferHandle struct {
	FileID   uuid.UUID
	Filename string
	Size     int64
}

// Request describes one download to perform
type Request struct {
	FileID   uuid.UUID
	Filename string
	Size     int64
	// Checksum is the expected BLAKE2b-256 hex digest; empty skips
	// verification.
	Checksum string
	// Image requests decode+render after download.
	Image bool
	// RenderCols is the target width in cells for image rendering.
	RenderCols int
}

type uploadRequest struct {
	ChannelID uuid.UUID
	Path      string
}

type job struct {
	download *Request
	upload   *uploadRequest
}

// Config configures a Manager
type Config struct {
	BaseURL     string
	Token       string
	DownloadDir string
	Workers     int
	QueueDepth  int
	Renderer    Renderer
	Logger      *zap.Logger
}

// Manager owns the transfer workers
type Manager struct {
	cfg    Config
	client *http.Client
	events chan Event
	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	log    *zap.Logger

	closeOnce sync.Once

	mu     sync.Mutex
	active map[uuid.UUID]*TransferHandle
}

// NewManager creates the manager and starts its workers
func NewManager(cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.Renderer == nil {
		cfg.Renderer = NewChafaRenderer()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	m := &Manager{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
		events: make(chan Event, 256),
		queue:  make(chan job, cfg.QueueDepth),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		log:    cfg.Logger,
		active: make(map[uuid.UUID]*TransferHandle),
	}
	for i := 0; i < cfg.Workers; i++ {
		group.Go(m.worker)
	}
	return m
}

// Events returns the pipeline event stream
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Request queues a download. Requests are serviced in FIFO order by a
// bounded number of workers; a request for a file already queued or running
// returns the existing handle.
func (m *Manager) Request(req Request) (*TransferHandle, error) {
	m.mu.Lock()
	if h, ok := m.active[req.FileID]; ok {
		m.mu.Unlock()
		return h, nil
	}
	h := &TransferHandle{FileID: req.FileID, Filename: req.Filename, Size: req.Size}
	m.active[req.FileID] = h
	m.mu.Unlock()

	select {
	case m.queue <- job{download: &req}:
		return h, nil
	default:
		m.mu.Lock()
		delete(m.active, req.FileID)
		m.mu.Unlock()
		return nil, ErrQueueFull
	}
}

// Upload queues a local file upload to a channel
func (m *Manager) Upload(channelID uuid.UUID, path string) error {
	select {
	case m.queue <- job{upload: &uploadRequest{ChannelID: channelID, Path: path}}:
		return nil
	default:
		return ErrQueueFull
	}
}

// InFlight reports whether a transfer for the file is queued or running
func (m *Manager) InFlight(fileID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[fileID]
	return ok
}

// Close cancels outstanding work and joins the workers, bounded by timeout.
// Safe to call more than once.
func (m *Manager) Close(timeout time.Duration) error {
	var err error
	m.closeOnce.Do(func() {
		m.cancel()
		finished := make(chan struct{})
		go func() {
			m.group.Wait()
			close(finished)
		}()
		select {
		case <-finished:
			close(m.events)
		case <-time.After(timeout):
			err = fmt.Errorf("pipeline: shutdown timed out after %s", timeout)
		}
	})
	return err
}

func (m *Manager) worker() error {
	for {
		select {
		case j := <-m.queue:
			if j.download != nil {
				m.runDownload(j.download)
			} else if j.upload != nil {
				m.runUpload(j.upload)
			}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Manager) runDownload(req *Request) {
	defer func() {
		m.mu.Lock()
		delete(m.active, req.FileID)
		m.mu.Unlock()
	}()

	path, data, err := m.download(req)
	if err != nil {
		m.log.Warn("download failed",
			zap.Stringer("file_id", req.FileID),
			zap.String("filename", req.Filename),
			zap.Error(err))
		m.emit(FailedEvent{FileID: req.FileID, Reason: models.FailNetwork, Err: err})
		return
	}

	if req.Checksum != "" {
		sum := blake2b.Sum256(data)
		if hex.EncodeToString(sum[:]) != req.Checksum {
			err := fmt.Errorf("checksum mismatch for %s", req.Filename)
			m.log.Warn("download corrupt", zap.Stringer("file_id", req.FileID), zap.Error(err))
			m.emit(FailedEvent{FileID: req.FileID, Reason: models.FailChecksum, Err: err})
			return
		}
	}

	var render *models.RenderPayload
	if req.Image {
		cols := req.RenderCols
		if cols <= 0 {
			cols = 80
		}
		render, err = decodeImage(m.ctx, m.cfg.Renderer, data, cols)
		if err != nil {
			reason := models.FailDecode
			if errors.Is(err, image.ErrFormat) {
				reason = models.FailUnsupported
			}
			m.log.Warn("image decode failed", zap.Stringer("file_id", req.FileID), zap.Error(err))
			m.emit(FailedEvent{FileID: req.FileID, Reason: reason, Err: err})
			return
		}
	}

	m.emit(ReadyEvent{FileID: req.FileID, Path: path, Render: render})
}

// download fetches the file to the download directory, emitting progress
// as it streams. It returns the final path and the file bytes (needed for
// checksum and decode without re-reading).
func (m *Manager) download(req *Request) (string, []byte, error) {
	u, err := fileURL(m.cfg.BaseURL, req.FileID)
	if err != nil {
		return "", nil, err
	}

	httpReq, err := http.NewRequestWithContext(m.ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, err
	}
	if m.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.cfg.Token)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("server returned %s", resp.Status)
	}

	total := req.Size
	if resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	if err := os.MkdirAll(m.cfg.DownloadDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	path := filepath.Join(m.cfg.DownloadDir, filepath.Base(req.Filename))
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create file: %w", err)
	}

	var data []byte
	buf := make([]byte, 32*1024)
	var written int64
	lastPercent := -1
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(tmp)
				return "", nil, fmt.Errorf("write failed: %w", werr)
			}
			data = append(data, buf[:n]...)
			written += int64(n)
			if total > 0 {
				percent := int(written * 100 / total)
				if percent > 100 {
					percent = 100
				}
				if percent != lastPercent {
					lastPercent = percent
					m.emit(ProgressEvent{FileID: req.FileID, Percent: percent})
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(tmp)
			return "", nil, fmt.Errorf("read failed: %w", readErr)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", nil, err
	}
	if lastPercent < 100 {
		m.emit(ProgressEvent{FileID: req.FileID, Percent: 100})
	}
	return path, data, nil
}

func (m *Manager) runUpload(req *uploadRequest) {
	fileID, err := m.upload(req)
	if err != nil {
		m.log.Warn("upload failed",
			zap.Stringer("channel_id", req.ChannelID),
			zap.String("path", req.Path),
			zap.Error(err))
		m.emit(UploadFailedEvent{ChannelID: req.ChannelID, Filename: filepath.Base(req.Path), Err: err})
		return
	}
	m.emit(UploadedEvent{ChannelID: req.ChannelID, FileID: fileID, Filename: filepath.Base(req.Path)})
}

func (m *Manager) upload(req *uploadRequest) (uuid.UUID, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		if err := mw.WriteField("channel_id", req.ChannelID.String()); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := mw.CreateFormFile("file", filepath.Base(req.Path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	u, err := uploadURL(m.cfg.BaseURL)
	if err != nil {
		return uuid.Nil, err
	}
	httpReq, err := http.NewRequestWithContext(m.ctx, http.MethodPost, u, pr)
	if err != nil {
		return uuid.Nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if m.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.cfg.Token)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return uuid.Nil, fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	var out struct {
		FileID uuid.UUID `json:"file_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	return out.FileID, nil
}

func fileURL(base string, fileID uuid.UUID) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/api/files/" + fileID.String()
	return u.String(), nil
}

func uploadURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/api/upload"
	return u.String(), nil
}

// emit delivers an event without blocking cancellation
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}
