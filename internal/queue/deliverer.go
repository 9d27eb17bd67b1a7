package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileDeliverer appends one line per delivery to tickets.log in dir.  It
// stands in for a mail provider in development and in deployments where
// another system picks the file up.
type FileDeliverer struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewFileDeliverer(dir string) *FileDeliverer {
	if dir == "" {
		dir = "logs"
	}
	return &FileDeliverer{dir: dir, now: time.Now}
}

func (f *FileDeliverer) Name() string { return "logfile" }

func (f *FileDeliverer) Path() string { return filepath.Join(f.dir, "tickets.log") }

func (f *FileDeliverer) Deliver(_ context.Context, d Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", f.dir, err)
	}
	file, err := os.OpenFile(f.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ticket log: %w", err)
	}
	defer file.Close()

	line := fmt.Sprintf("[%s] Tickets sent | order_id=%d | event_id=%d | to=%q | count=%d | tickets=[%s]\n",
		f.now().UTC().Format(time.RFC3339), d.OrderID, d.EventID, d.Recipient, len(d.Tokens), strings.Join(d.Tokens, ","))
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("write ticket log: %w", err)
	}
	return nil
}
