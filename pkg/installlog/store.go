package installlog

import (
	stderrors "errors"
	"io/fs"
	"sync"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/rs/zerolog"
)

// Store owns the process-wide ledger. The document is read on first use and
// the in-memory copy is only replaced once a transaction that saved a new
// version has committed.
type Store struct {
	mu     sync.Mutex
	fsys   types.FS
	path   string
	log    *Log
	logger zerolog.Logger
}

// NewStore returns a store backed by the document at path.
func NewStore(fsys types.FS, path string) *Store {
	return &Store{
		fsys:   fsys,
		path:   path,
		logger: logging.GetLogger("installlog"),
	}
}

// Path returns the location of the ledger document.
func (s *Store) Path() string { return s.path }

// Snapshot returns a private copy of the ledger, loading it if needed.
// Changes to the copy are invisible until passed to Replace.
func (s *Store) Snapshot() (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.log == nil {
		l, err := s.read()
		if err != nil {
			return nil, err
		}
		s.log = l
	}
	return s.log.Clone(), nil
}

func (s *Store) read() (*Log, error) {
	data, err := s.fsys.ReadFile(s.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("No install log yet, starting empty")
			return New(), nil
		}
		return nil, errors.Wrapf(err, errors.ErrLedgerLoad, "failed to read install log %s", s.path)
	}
	l, err := Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLedgerLoad, "failed to load install log %s", s.path)
	}
	s.logger.Debug().
		Str("path", s.path).
		Int("mods", len(l.mods)).
		Int("files", len(l.files)).
		Msg("Loaded install log")
	return l, nil
}

// Replace installs l as the current ledger. Call it only after the
// transaction that wrote l's document has committed.
func (s *Store) Replace(l *Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l.Clone()
}

// Invalidate drops the cached ledger so the next Snapshot re-reads the
// document, as needed after crash recovery rewrote it.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}
