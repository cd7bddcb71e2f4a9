package relay

import (
	"context"
	"time"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

// Envelope is the message body published for one document change.
type Envelope struct {
	ChangeID  string              `json:"changeId"`
	Kind      docstore.ChangeKind `json:"kind"`
	Path      string              `json:"path"`
	RoomID    string              `json:"roomId,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Document  docstore.Fields     `json:"document,omitempty"`
}

// NewEnvelope builds the envelope for change. snap is nil for deletions and for
// documents that disappeared before they could be read.
func NewEnvelope(change docstore.Change, snap *docstore.Snapshot) Envelope {
	env := Envelope{
		ChangeID:  change.ID,
		Kind:      change.Kind,
		Path:      change.Path,
		RoomID:    roomIDFromPath(change.Path),
		Timestamp: change.At,
	}
	if snap != nil {
		env.Document = snap.Fields
	}
	return env
}

// roomIDFromPath walks up to the top level rooms document.
func roomIDFromPath(p string) string {
	ref, err := docstore.ParseDocumentPath(p)
	if err != nil {
		return ""
	}
	for {
		parent, ok := ref.Collection().Parent()
		if !ok {
			break
		}
		ref = parent
	}
	if ref.Collection().Path() != models.RoomsCollection {
		return ""
	}
	return ref.ID()
}

// Publisher delivers envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Config struct {
	BufferSize int // pending changes before new ones are dropped
	MaxRetries int
	RetryDelay time.Duration // multiplied by the attempt number
}

func DefaultConfig() Config {
	return Config{
		BufferSize: 1024,
		MaxRetries: 5,
		RetryDelay: 200 * time.Millisecond,
	}
}
