package transaction

import (
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

const journalVersion = 1

type snapKind int

const (
	snapAbsent snapKind = iota
	snapFile
	snapDir
)

// snapshot is the pre-commit state of one path.
type snapshot struct {
	Path string      `cbor:"path"`
	Kind snapKind    `cbor:"kind"`
	Data []byte      `cbor:"data,omitempty"`
	Perm fs.FileMode `cbor:"perm,omitempty"`
}

type journal struct {
	Version   int        `cbor:"version"`
	Created   time.Time  `cbor:"created"`
	Snapshots []snapshot `cbor:"snapshots"`
}

// capture records the base state of every path the staged operations touch,
// once per path, before anything is applied. touched[i] lists the snapshot
// indices operation i can change.
func (t *Tx) capture() (snaps []snapshot, touched [][]int, err error) {
	index := make(map[string]int)
	touched = make([][]int, len(t.ops))
	cur := -1

	add := func(p string) (snapshot, error) {
		i, ok := index[p]
		if !ok {
			s, err := snapshotOf(t.base, p)
			if err != nil {
				return s, err
			}
			i = len(snaps)
			index[p] = i
			snaps = append(snaps, s)
		}
		if cur >= 0 {
			touched[cur] = append(touched[cur], i)
		}
		return snaps[i], nil
	}
	var tree func(p string) error
	tree = func(p string) error {
		s, err := add(p)
		if err != nil || s.Kind != snapDir {
			return err
		}
		entries, err := t.base.ReadDir(p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := tree(filepath.Join(p, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	for i, o := range t.ops {
		cur = i
		switch o.Kind {
		case opWrite, opRemove:
			_, err = add(o.Path)
		case opRemoveAll:
			err = tree(o.Path)
		case opMkdir:
			for d := o.Path; ; d = filepath.Dir(d) {
				var s snapshot
				if s, err = add(d); err != nil || s.Kind != snapAbsent || d == filepath.Dir(d) {
					break
				}
			}
		}
		if err != nil {
			return nil, nil, err
		}
	}
	cur = -1
	for _, p := range t.explicit {
		if err := tree(p); err != nil {
			return nil, nil, err
		}
	}
	return snaps, touched, nil
}

func snapshotOf(fsys types.FS, p string) (snapshot, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		if isNotExist(err) {
			return snapshot{Path: p, Kind: snapAbsent}, nil
		}
		return snapshot{}, err
	}
	if info.IsDir() {
		return snapshot{Path: p, Kind: snapDir, Perm: info.Mode().Perm()}, nil
	}
	data, err := fsys.ReadFile(p)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{Path: p, Kind: snapFile, Data: data, Perm: info.Mode().Perm()}, nil
}

func encodeJournal(snaps []snapshot) ([]byte, error) {
	raw, err := cbor.Marshal(journal{Version: journalVersion, Created: time.Now().UTC(), Snapshots: snaps})
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(raw, nil), nil
}

func decodeJournal(data []byte) (*journal, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	var j journal
	if err := cbor.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	if j.Version != journalVersion {
		return nil, errors.Newf(errors.ErrTransaction, "unsupported journal version %d", j.Version)
	}
	return &j, nil
}

func journalTemp(path string) string {
	return path + ".tmp"
}

// writeJournal writes the journal beside its final path and renames it into
// place, so Recover never sees a partial journal.
func writeJournal(fsys types.FS, path string, snaps []snapshot) error {
	data, err := encodeJournal(snaps)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransaction, "failed to encode transaction journal")
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrTransaction, "failed to create journal directory %s", filepath.Dir(path))
	}
	tmp := journalTemp(path)
	if err := fsys.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, errors.ErrTransaction, "failed to write transaction journal %s", tmp)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, errors.ErrTransaction, "failed to move transaction journal into %s", path)
	}
	return nil
}

// restore puts every snapshot back and returns the paths it could not.
// Paths that did not exist go first, deepest first, then directories,
// shallowest first, then file contents.
func restore(fsys types.FS, snaps []snapshot, logger zerolog.Logger) []string {
	var absent, dirs, files []snapshot
	for _, s := range snaps {
		switch s.Kind {
		case snapAbsent:
			absent = append(absent, s)
		case snapDir:
			dirs = append(dirs, s)
		default:
			files = append(files, s)
		}
	}
	sort.SliceStable(absent, func(i, j int) bool { return depth(absent[i].Path) > depth(absent[j].Path) })
	sort.SliceStable(dirs, func(i, j int) bool { return depth(dirs[i].Path) < depth(dirs[j].Path) })

	var failed []string
	fail := func(p string, err error) {
		logger.Error().Err(err).Str("path", p).Msg("Failed to restore")
		failed = append(failed, p)
	}

	for _, s := range absent {
		if _, err := fsys.Stat(s.Path); isNotExist(err) {
			continue
		}
		if err := fsys.RemoveAll(s.Path); err != nil {
			fail(s.Path, err)
		}
	}
	for _, s := range dirs {
		if info, err := fsys.Stat(s.Path); err == nil && !info.IsDir() {
			if err := fsys.Remove(s.Path); err != nil {
				fail(s.Path, err)
				continue
			}
		}
		if err := fsys.MkdirAll(s.Path, s.Perm); err != nil {
			fail(s.Path, err)
		}
	}
	for _, s := range files {
		if info, err := fsys.Stat(s.Path); err == nil && info.IsDir() {
			if err := fsys.RemoveAll(s.Path); err != nil {
				fail(s.Path, err)
				continue
			}
		}
		if err := fsys.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
			fail(s.Path, err)
			continue
		}
		if err := fsys.WriteFile(s.Path, s.Data, s.Perm); err != nil {
			fail(s.Path, err)
		}
	}
	return failed
}

func depth(p string) int {
	return strings.Count(filepath.ToSlash(p), "/")
}

// Recover replays a journal left behind by an interrupted commit and
// reports whether there was one. The journal is removed once every
// snapshot is back in place.
func Recover(fsys types.FS, journalPath string) (bool, error) {
	logger := logging.GetLogger("transaction.recover")

	// a leftover temp journal means the commit stopped before touching anything
	tmp := journalTemp(journalPath)
	if _, err := fsys.Stat(tmp); err == nil {
		logger.Warn().Str("journal", tmp).Msg("Discarding incomplete transaction journal")
		if err := fsys.Remove(tmp); err != nil {
			return false, errors.Wrapf(err, errors.ErrTransaction, "failed to remove incomplete journal %s", tmp)
		}
	}

	data, err := fsys.ReadFile(journalPath)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrTransaction, "failed to read transaction journal %s", journalPath)
	}
	j, err := decodeJournal(data)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrTransaction, "transaction journal %s is unreadable", journalPath)
	}

	logger.Warn().
		Str("journal", journalPath).
		Time("created", j.Created).
		Int("snapshots", len(j.Snapshots)).
		Msg("Found interrupted transaction, restoring")

	if failed := restore(fsys, j.Snapshots, logger); len(failed) > 0 {
		return true, errors.Newf(errors.ErrRollback, "%d resources could not be restored", len(failed)).
			WithDetail("unrestored", failed).
			WithDetail("journal", journalPath)
	}
	if err := fsys.Remove(journalPath); err != nil {
		return true, errors.Wrapf(err, errors.ErrTransaction, "failed to clear transaction journal %s", journalPath)
	}
	logger.Info().Int("snapshots", len(j.Snapshots)).Msg("Interrupted transaction restored")
	return true, nil
}

// Unrestored returns the paths a failed rollback left behind, if any.
func Unrestored(err error) []string {
	for err != nil {
		var me *errors.ModmanError
		if !stderrors.As(err, &me) {
			return nil
		}
		if paths, ok := me.Details["unrestored"].([]string); ok {
			return paths
		}
		err = me.Wrapped
	}
	return nil
}
