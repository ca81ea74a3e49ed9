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

// chatDropPoller implements core.Poller over a directory of chat message
// drops, one markdown file per message. Same inbox/outbox layout as the
// mail poller; chat messages carry a space instead of an address and no
// subject line of their own.
type chatDropPoller struct {
	name      string
	inboxDir  string
	outboxDir string
	seq       atomic.Uint64
	now       func() time.Time
}

// chatFrontmatter is the YAML frontmatter schema for chat drop files.
type chatFrontmatter struct {
	ID     string `yaml:"id"`
	Space  string `yaml:"space,omitempty"`
	Sender string `yaml:"sender,omitempty"`
	To     string `yaml:"to,omitempty"`
	Date   string `yaml:"date,omitempty"`
	Status string `yaml:"status"`
}

// NewChatDropPoller creates a chat poller that reads from cfg.Path/inbox/
// and writes replies to cfg.Path/outbox/, creating both directories.
func NewChatDropPoller(cfg models.SourceConfig) (*chatDropPoller, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("creating chat poller: name is empty")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("creating chat poller: path is empty")
	}

	inboxDir := filepath.Join(cfg.Path, "inbox")
	outboxDir := filepath.Join(cfg.Path, "outbox")
	for _, dir := range []string{inboxDir, outboxDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating chat drop directory %s: %w", dir, err)
		}
	}

	return &chatDropPoller{
		name:      cfg.Name,
		inboxDir:  inboxDir,
		outboxDir: outboxDir,
		now:       time.Now,
	}, nil
}

func (p *chatDropPoller) Name() string {
	return p.name
}

func (p *chatDropPoller) Source() models.Source {
	return models.SourceChat
}

// Poll reads all pending chat drops from the inbox directory. The item
// subject is derived from the first line of the message text since chat
// messages have none of their own.
func (p *chatDropPoller) Poll(ctx context.Context) ([]models.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.inboxDir)
	if err != nil {
		return nil, fmt.Errorf("reading chat inbox: %w", err)
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

// Send renders a reply into the outbox with the CHAT file prefix. The
// recipient is the space or sender the reply addresses.
func (p *chatDropPoller) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("sending chat reply: recipient is empty")
	}

	now := p.now().UTC()
	fm := chatFrontmatter{
		ID:     fmt.Sprintf("reply-%s-%04d", now.Format("20060102150405"), p.seq.Add(1)),
		To:     to,
		Date:   now.Format(time.RFC3339),
		Status: "sent",
	}

	content, err := renderDropFile(fm, body)
	if err != nil {
		return fmt.Errorf("rendering chat reply: %w", err)
	}

	path := filepath.Join(p.outboxDir, "CHAT - "+fm.ID+".md")
	if err := storage.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing chat reply: %w", err)
	}
	return nil
}

// parseDrop reads one inbox file. The bool reports whether the file is a
// well-formed, still-pending drop.
func (p *chatDropPoller) parseDrop(path string) (models.RawItem, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawItem{}, false
	}

	fmStr, body, err := splitDropFile(string(data))
	if err != nil {
		return models.RawItem{}, false
	}

	var fm chatFrontmatter
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

	sender := fm.Sender
	if fm.Space != "" {
		sender = fmt.Sprintf("%s (%s)", fm.Sender, fm.Space)
	}

	item := models.RawItem{
		ID:         fm.ID,
		Source:     models.SourceChat,
		Sender:     sender,
		Subject:    chatSubject(body),
		Body:       body,
		ReceivedAt: received,
	}
	if item.ID == "" {
		item.ID = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	return item, true
}

// chatSubject derives a subject from the first non-empty line of the
// message text, capped so vault filenames stay readable.
func chatSubject(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 80 {
			line = strings.TrimSpace(line[:80])
		}
		return line
	}
	return "(no subject)"
}
