package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// mailDropPoller implements core.Poller over a directory of markdown mail
// drops. Incoming messages are read from <path>/inbox/ and replies are
// rendered into <path>/outbox/. No network is involved; a delivery agent
// on either side owns the real transport.
type mailDropPoller struct {
	name      string
	inboxDir  string
	outboxDir string
	seq       atomic.Uint64
	now       func() time.Time
}

// mailFrontmatter is the YAML frontmatter schema for mail drop files.
type mailFrontmatter struct {
	ID      string   `yaml:"id"`
	From    string   `yaml:"from,omitempty"`
	To      string   `yaml:"to,omitempty"`
	Subject string   `yaml:"subject"`
	Date    string   `yaml:"date,omitempty"`
	Status  string   `yaml:"status"`
	History []string `yaml:"history,omitempty"`
}

// NewMailDropPoller creates a mail poller that reads from cfg.Path/inbox/
// and writes replies to cfg.Path/outbox/, creating both directories.
func NewMailDropPoller(cfg models.SourceConfig) (*mailDropPoller, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("creating mail poller: name is empty")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("creating mail poller: path is empty")
	}

	inboxDir := filepath.Join(cfg.Path, "inbox")
	outboxDir := filepath.Join(cfg.Path, "outbox")
	for _, dir := range []string{inboxDir, outboxDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating mail drop directory %s: %w", dir, err)
		}
	}

	return &mailDropPoller{
		name:      cfg.Name,
		inboxDir:  inboxDir,
		outboxDir: outboxDir,
		now:       time.Now,
	}, nil
}

func (p *mailDropPoller) Name() string {
	return p.name
}

func (p *mailDropPoller) Source() models.Source {
	return models.SourceEmail
}

// Poll reads all pending mail drops from the inbox directory. Malformed
// files are skipped rather than failing the whole poll; the workflow's
// idempotency store makes re-returning already-processed drops harmless.
func (p *mailDropPoller) Poll(ctx context.Context) ([]models.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.inboxDir)
	if err != nil {
		return nil, fmt.Errorf("reading mail inbox: %w", err)
	}

	var items []models.RawItem
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		item, ok := p.parseDrop(filepath.Join(p.inboxDir, entry.Name()))
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// Send renders a reply as a markdown file in the outbox directory. The
// write goes through a temp file so a watching delivery agent never sees
// a half-written reply.
func (p *mailDropPoller) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("sending mail reply: recipient is empty")
	}

	now := p.now().UTC()
	fm := mailFrontmatter{
		ID:      fmt.Sprintf("reply-%s-%04d", now.Format("20060102150405"), p.seq.Add(1)),
		To:      to,
		Subject: subject,
		Date:    now.Format(time.RFC3339),
		Status:  "sent",
	}

	content, err := renderDropFile(fm, body)
	if err != nil {
		return fmt.Errorf("rendering mail reply: %w", err)
	}

	path := filepath.Join(p.outboxDir, fm.ID+".md")
	if err := storage.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing mail reply: %w", err)
	}
	return nil
}

// parseDrop reads one inbox file. The bool reports whether the file is a
// well-formed, still-pending drop.
func (p *mailDropPoller) parseDrop(path string) (models.RawItem, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawItem{}, false
	}

	fmStr, body, err := splitDropFile(string(data))
	if err != nil {
		return models.RawItem{}, false
	}

	var fm mailFrontmatter
	if err := yaml.Unmarshal([]byte(fmStr), &fm); err != nil {
		return models.RawItem{}, false
	}
	if !dropStatusPending(fm.Status) {
		return models.RawItem{}, false
	}

	received := time.Time{}
	if info, err := os.Stat(path); err == nil {
		received = info.ModTime()
	}
	received = parseDropDate(fm.Date, received)

	item := models.RawItem{
		ID:         fm.ID,
		Source:     models.SourceEmail,
		Sender:     fm.From,
		Subject:    fm.Subject,
		Body:       body,
		ReceivedAt: received,
		History:    fm.History,
	}
	// Use the filename as ID if the frontmatter ID is empty.
	if item.ID == "" {
		item.ID = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	return item, true
}
