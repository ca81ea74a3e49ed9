package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

// ErrNotFound marks a vault document that does not exist.
var ErrNotFound = errors.New("document not found")

// Ref locates a document in the vault by state folder and file name.
type Ref struct {
	State models.ItemState
	Name  string
}

// stateFolders maps workflow states onto vault folder names. Archived
// shares the Done folder; the distinction lives in the document's status
// field.
var stateFolders = map[models.ItemState]string{
	models.StatePending:     "Needs_Action",
	models.StatePlanPending: "Plans",
	models.StateApproved:    "Approved",
	models.StateRejected:    "Rejected",
	models.StateDone:        "Done",
	models.StateArchived:    "Done",
	models.StateInbox:       "Inbox",
}

// Record folders that hold audit documents rather than workflow states.
const (
	TasksFolder    = "Tasks"
	AutoSentFolder = "Logs/Auto_Sent"
	ErrorsFolder   = "Logs/Errors"
)

// FolderFor returns the vault folder name backing a workflow state.
func FolderFor(state models.ItemState) string {
	return stateFolders[state]
}

// Vault is the folder-per-state document store underpinning the triage
// workflow. Every write lands full content in a temp file that is renamed
// into the destination folder, so a crash never leaves a half-written
// document; a state transition is the pair (write new content, rename).
type Vault interface {
	// EnsureLayout creates the complete folder tree under the root.
	EnsureLayout() error
	// Create writes or replaces a document. Replaying an ingest after a
	// crash rewrites the same deterministic content, so overwriting is
	// what makes recovery by re-run safe.
	Create(state models.ItemState, name string, meta models.DocMeta, body string) (Ref, error)
	Read(ref Ref) (models.DocMeta, string, error)
	// PatchMeta applies a typed mutation to the frontmatter and rewrites
	// the document in place. The body is untouched.
	PatchMeta(ref Ref, patch func(*models.DocMeta)) error
	Move(ref Ref, to models.ItemState) (Ref, error)
	// List returns documents in a state folder matching the glob pattern,
	// sorted by name. An empty pattern matches everything.
	List(state models.ItemState, pattern string) ([]Ref, error)
	// WriteRecord stores an audit document in one of the record folders.
	WriteRecord(folder, name string, meta models.DocMeta, body string) error
	// ReadRecord loads an audit document, returning ErrNotFound when the
	// file does not exist.
	ReadRecord(folder, name string) (models.DocMeta, string, error)
	// AppendNote adds a timestamped bullet under the named section of the
	// document body, creating the section at the end if it is missing.
	AppendNote(ref Ref, section, note string, at time.Time) error
	Exists(ref Ref) bool
	Root() string
}

type fileVault struct {
	root string
}

// NewVault creates a Vault rooted at the given directory. Call EnsureLayout
// once before first use.
func NewVault(root string) Vault {
	return &fileVault{root: root}
}

func (v *fileVault) Root() string {
	return v.root
}

func (v *fileVault) path(ref Ref) string {
	return filepath.Join(v.root, stateFolders[ref.State], ref.Name)
}

func (v *fileVault) EnsureLayout() error {
	dirs := []string{TasksFolder, AutoSentFolder, ErrorsFolder}
	for _, folder := range stateFolders {
		dirs = append(dirs, folder)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(v.root, dir), 0o755); err != nil {
			return fmt.Errorf("creating vault folder %s: %w", dir, err)
		}
	}
	return nil
}

func (v *fileVault) Create(state models.ItemState, name string, meta models.DocMeta, body string) (Ref, error) {
	ref := Ref{State: state, Name: name}

	content, err := RenderDocument(meta, body)
	if err != nil {
		return ref, fmt.Errorf("creating document %s: %w", name, err)
	}

	path := v.path(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ref, fmt.Errorf("creating document %s: %w", name, err)
	}
	if err := atomicWrite(path, []byte(content), 0o644); err != nil {
		return ref, fmt.Errorf("creating document %s: %w", name, err)
	}

	return ref, nil
}

func (v *fileVault) Read(ref Ref) (models.DocMeta, string, error) {
	data, err := os.ReadFile(v.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return models.DocMeta{}, "", fmt.Errorf("reading %s: %w", ref.Name, ErrNotFound)
		}
		return models.DocMeta{}, "", fmt.Errorf("reading %s: %w", ref.Name, err)
	}

	meta, body, err := ParseDocument(string(data))
	if err != nil {
		return meta, body, fmt.Errorf("reading %s: %w", ref.Name, err)
	}
	return meta, body, nil
}

func (v *fileVault) PatchMeta(ref Ref, patch func(*models.DocMeta)) error {
	meta, body, err := v.Read(ref)
	if err != nil {
		return err
	}

	patch(&meta)

	content, err := RenderDocument(meta, body)
	if err != nil {
		return fmt.Errorf("patching %s: %w", ref.Name, err)
	}
	if err := atomicWrite(v.path(ref), []byte(content), 0o644); err != nil {
		return fmt.Errorf("patching %s: %w", ref.Name, err)
	}
	return nil
}

func (v *fileVault) Move(ref Ref, to models.ItemState) (Ref, error) {
	dst := Ref{State: to, Name: ref.Name}

	if _, err := os.Stat(v.path(ref)); err != nil {
		if os.IsNotExist(err) {
			return dst, fmt.Errorf("moving %s: %w", ref.Name, ErrNotFound)
		}
		return dst, fmt.Errorf("moving %s: %w", ref.Name, err)
	}
	if err := os.Rename(v.path(ref), v.path(dst)); err != nil {
		return dst, fmt.Errorf("moving %s to %s: %w", ref.Name, stateFolders[to], err)
	}
	return dst, nil
}

func (v *fileVault) List(state models.ItemState, pattern string) ([]Ref, error) {
	if pattern == "" {
		pattern = "*"
	}

	dir := filepath.Join(v.root, stateFolders[state])
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", stateFolders[state], err)
	}

	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("listing %s: bad pattern %q: %w", stateFolders[state], pattern, err)
		}
		if match {
			refs = append(refs, Ref{State: state, Name: entry.Name()})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (v *fileVault) WriteRecord(folder, name string, meta models.DocMeta, body string) error {
	content, err := RenderDocument(meta, body)
	if err != nil {
		return fmt.Errorf("writing record %s: %w", name, err)
	}

	dir := filepath.Join(v.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writing record %s: %w", name, err)
	}
	if err := atomicWrite(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing record %s: %w", name, err)
	}
	return nil
}

func (v *fileVault) ReadRecord(folder, name string) (models.DocMeta, string, error) {
	data, err := os.ReadFile(filepath.Join(v.root, folder, name))
	if err != nil {
		if os.IsNotExist(err) {
			return models.DocMeta{}, "", fmt.Errorf("reading record %s: %w", name, ErrNotFound)
		}
		return models.DocMeta{}, "", fmt.Errorf("reading record %s: %w", name, err)
	}

	meta, body, err := ParseDocument(string(data))
	if err != nil {
		return meta, body, fmt.Errorf("reading record %s: %w", name, err)
	}
	return meta, body, nil
}

func (v *fileVault) AppendNote(ref Ref, section, note string, at time.Time) error {
	meta, body, err := v.Read(ref)
	if err != nil {
		return err
	}

	marker := "## " + section
	line := fmt.Sprintf("\n- **%s**: %s\n", at.Format("2006-01-02 15:04"), note)

	idx := strings.Index(body, marker)
	if idx < 0 {
		body = body + "\n\n" + marker + "\n" + line
	} else if next := strings.Index(body[idx+len(marker):], "\n## "); next < 0 {
		body += line
	} else {
		insert := idx + len(marker) + next
		body = body[:insert] + line + body[insert:]
	}

	content, err := RenderDocument(meta, body)
	if err != nil {
		return fmt.Errorf("noting %s: %w", ref.Name, err)
	}
	if err := atomicWrite(v.path(ref), []byte(content), 0o644); err != nil {
		return fmt.Errorf("noting %s: %w", ref.Name, err)
	}
	return nil
}

func (v *fileVault) Exists(ref Ref) bool {
	_, err := os.Stat(v.path(ref))
	return err == nil
}
