// ABOUTME: Single-slot image attachment manager for the message composer.
// ABOUTME: Converts files to data-URI previews asynchronously, guarded by a generation counter.

package attachment

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
)

// Attachment is a snapshot of the composer's pending image.
type Attachment struct {
	Filename string
	Data     []byte
	// Preview is a data URI rendering of Data. Empty while conversion is
	// still pending or if conversion failed.
	Preview string
}

// maxAttachmentSize caps how large a file the composer will accept.
const maxAttachmentSize = 10 << 20 // 10 MiB

// ErrTooLarge is returned by Select when the file exceeds maxAttachmentSize.
var ErrTooLarge = fmt.Errorf("attachment exceeds %d bytes", maxAttachmentSize)

// Manager holds at most one pending attachment. Selecting a new file replaces
// any previous one. Each selection bumps a generation counter; a conversion
// result is applied only if its generation still matches the current
// selection, so a stale conversion can never clobber a newer file.
type Manager struct {
	mu      sync.Mutex
	gen     uint64
	current Attachment
}

// NewManager creates an empty attachment manager.
func NewManager() *Manager {
	return &Manager{}
}

// Select replaces the held attachment with the given file and starts a
// single-shot asynchronous conversion to a data-URI preview. The returned
// channel delivers exactly one value: nil once the preview is set, or the
// conversion error. If a newer selection (or Clear) supersedes this one
// before conversion completes, the result is discarded and the channel still
// reports nil.
func (m *Manager) Select(filename string, data []byte) <-chan error {
	done := make(chan error, 1)

	if len(data) > maxAttachmentSize {
		done <- ErrTooLarge
		return done
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.current = Attachment{Filename: filename, Data: data}
	m.mu.Unlock()

	go func() {
		preview := encodeDataURI(data)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen {
			// Superseded by a newer selection or a Clear.
			done <- nil
			return
		}
		m.current.Preview = preview
		done <- nil
	}()

	return done
}

// Current returns a snapshot of the held attachment, if any.
func (m *Manager) Current() (Attachment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Data == nil {
		return Attachment{}, false
	}
	return m.current, true
}

// Clear removes the file and preview. A conversion still in flight for the
// cleared file is discarded when it completes.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.current = Attachment{}
}

// encodeDataURI renders file bytes as a data URI, sniffing the MIME type
// from the content the same way a browser preview would.
func encodeDataURI(data []byte) string {
	mime := http.DetectContentType(data)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
