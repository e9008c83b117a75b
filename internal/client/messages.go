package client

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/pipeline"
	"github.com/driftchat/drift/internal/transport"
)

// transportBatchMsg carries every transport event that was queued when the
// listener woke up. Draining in batches keeps a burst of events to a single
// render.
type transportBatchMsg struct {
	events []transport.Event
	closed bool
}

// pipelineBatchMsg carries queued pipeline events, same batching rule
type pipelineBatchMsg struct {
	events []pipeline.Event
	closed bool
}

// animTickMsg advances one animated attachment to its next frame
type animTickMsg struct {
	fileID uuid.UUID
	frame  int
}

// statusMsg sets a transient status line
type statusMsg struct {
	text  string
	isErr bool
}

// historyMsg delivers an older page of messages for a channel
type historyMsg struct {
	channelID uuid.UUID
	page      []*models.Message
	err       error
}

// listenTransport blocks for one transport event, then drains whatever else
// is already queued
func listenTransport(ch <-chan transport.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return transportBatchMsg{closed: true}
		}
		batch := []transport.Event{ev}
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return transportBatchMsg{events: batch, closed: true}
				}
				batch = append(batch, ev)
			default:
				return transportBatchMsg{events: batch}
			}
		}
	}
}

// listenPipeline is listenTransport for pipeline events
func listenPipeline(ch <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return pipelineBatchMsg{closed: true}
		}
		batch := []pipeline.Event{ev}
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return pipelineBatchMsg{events: batch, closed: true}
				}
				batch = append(batch, ev)
			default:
				return pipelineBatchMsg{events: batch}
			}
		}
	}
}

// animTick schedules the next frame of an animated attachment
func animTick(fileID uuid.UUID, frame int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return animTickMsg{fileID: fileID, frame: frame}
	})
}
