// Package session persists what `load`, `suggest` and `ask` share between
// invocations: the loaded archive, the selected CSV files, the suggested
// questions and the question history.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/csvoracle-cli/internal/utils"
)

const (
	sessionFileName = "session.json"
	extractDirName  = "extracted"
)

// ErrNoSession is returned when nothing has been loaded yet.
var ErrNoSession = errors.New("no dataset loaded; run `csvoracle load <archive.zip>` first")

// Session is the persisted state of one loaded archive.
type Session struct {
	ID            string     `json:"id"`
	ArchiveName   string     `json:"archive_name"`
	ArchiveSHA256 string     `json:"archive_sha256"`
	Files         []string   `json:"files"`
	Delimiter     string     `json:"delimiter,omitempty"`
	SourceColumn  string     `json:"source_column,omitempty"`
	Rows          int        `json:"rows"`
	Columns       []string   `json:"columns"`
	Suggestions   []string   `json:"suggestions"`
	History       []Exchange `json:"history"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Not serialized: directory holding session.json and the extraction.
	rootDir string `json:"-"`
}

// Exchange is one question asked of the agent.
type Exchange struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Steps    int       `json:"steps"`
	Tabular  bool      `json:"tabular"`
	AskedAt  time.Time `json:"asked_at"`
}

// New constructs an in-memory session for an archive. Call Save to persist.
func New(rootDir, archiveName, archiveSHA256 string) *Session {
	now := time.Now()
	return &Session{
		ID:            uuid.NewString(),
		ArchiveName:   archiveName,
		ArchiveSHA256: archiveSHA256,
		Suggestions:   []string{},
		History:       []Exchange{},
		CreatedAt:     now,
		UpdatedAt:     now,
		rootDir:       rootDir,
	}
}

// Load reads session.json from dir.
func Load(dir string) (*Session, error) {
	path := filepath.Join(dir, sessionFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	s.rootDir = dir
	return &s, nil
}

// RootDir returns the session directory.
func (s *Session) RootDir() string { return s.rootDir }

// ExtractDir is where the archive contents live.
func (s *Session) ExtractDir() string { return filepath.Join(s.rootDir, extractDirName) }

// Save writes session.json atomically.
func (s *Session) Save() error {
	if s.rootDir == "" {
		return errors.New("session directory not set")
	}
	s.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, sessionFileName), data)
}

// Matches reports whether the session was built from the same archive.
func (s *Session) Matches(archiveName, archiveSHA256 string) bool {
	return s != nil && s.ArchiveName == archiveName && s.ArchiveSHA256 == archiveSHA256
}

// SetSuggestions replaces the suggested questions.
func (s *Session) SetSuggestions(qs []string) {
	if qs == nil {
		qs = []string{}
	}
	s.Suggestions = qs
	s.UpdatedAt = time.Now()
}

// AddExchange records an answered question and returns it.
func (s *Session) AddExchange(question, answer string, steps int, tabular bool) Exchange {
	e := Exchange{
		ID:       uuid.NewString(),
		Question: strings.TrimSpace(question),
		Answer:   answer,
		Steps:    steps,
		Tabular:  tabular,
		AskedAt:  time.Now(),
	}
	s.History = append(s.History, e)
	s.UpdatedAt = time.Now()
	return e
}

// Clear removes the session file and the extracted archive.
func Clear(dir string) error {
	if err := os.RemoveAll(filepath.Join(dir, extractDirName)); err != nil {
		return fmt.Errorf("remove extraction: %w", err)
	}
	if err := os.Remove(filepath.Join(dir, sessionFileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
