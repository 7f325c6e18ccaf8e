// Package chattest provides a recording chat.Provisioner for tests.
package chattest

import (
	"context"
	"slices"
	"sync"

	"github.com/mmynk/tablemates/internal/chat"
)

// Channel is the recorded state of one channel.
type Channel struct {
	Name      string
	CreatorID string
	Members   []string
	Creates   int
}

// Recorder keeps channel state in memory. Set Err to make every channel
// operation fail.
type Recorder struct {
	mu       sync.Mutex
	channels map[string]*Channel
	Err      error
}

var _ chat.Provisioner = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{channels: make(map[string]*Channel)}
}

// SetErr changes the error returned by channel operations.
func (r *Recorder) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *Recorder) CreateChannel(_ context.Context, channelID, name, creatorID string, members []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	ch, ok := r.channels[channelID]
	if !ok {
		ch = &Channel{}
		r.channels[channelID] = ch
	}
	ch.Name = name
	ch.CreatorID = creatorID
	ch.Members = slices.Clone(members)
	ch.Creates++
	return nil
}

func (r *Recorder) AddMembers(_ context.Context, channelID string, members []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if ch, ok := r.channels[channelID]; ok {
		for _, m := range members {
			if !slices.Contains(ch.Members, m) {
				ch.Members = append(ch.Members, m)
			}
		}
	}
	return nil
}

func (r *Recorder) RemoveMembers(_ context.Context, channelID string, members []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if ch, ok := r.channels[channelID]; ok {
		ch.Members = slices.DeleteFunc(ch.Members, func(m string) bool {
			return slices.Contains(members, m)
		})
	}
	return nil
}

func (r *Recorder) IssueToken(_ context.Context, uid string) (string, error) {
	return "token:" + uid, nil
}

// Channel returns a copy of the recorded channel, or nil.
func (r *Recorder) Channel(channelID string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[channelID]
	if !ok {
		return nil
	}
	cp := *ch
	cp.Members = slices.Clone(ch.Members)
	return &cp
}

// Len returns the number of channels created.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
