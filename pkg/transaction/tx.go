package transaction

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/rs/zerolog"
)

type opKind string

const (
	opWrite     opKind = "write"
	opMkdir     opKind = "mkdir"
	opRemove    opKind = "remove"
	opRemoveAll opKind = "remove-all"
)

// op is one staged mutation, applied to the base in staging order.
type op struct {
	Kind opKind
	Path string
	Data []byte
	Perm uint32
}

type state int

const (
	stateOpen state = iota
	stateCommitted
	stateRolledBack
)

// Tx is one all-or-nothing unit of filesystem work.
type Tx struct {
	mu          sync.Mutex
	base        types.FS
	journalPath string
	pipelineFS  filesystem.FullFileSystem
	logger      zerolog.Logger

	staged   overlay
	ops      []op
	explicit []string
	state    state
}

// New opens a transaction over base. journalPath is where Commit keeps the
// snapshots while the staged operations are applied.
func New(base types.FS, journalPath string) *Tx {
	osfs := filesystem.NewOSFileSystem("/")
	return &Tx{
		base:        base,
		journalPath: journalPath,
		pipelineFS:  synthfs.NewPathAwareFileSystem(osfs, "/").WithAbsolutePaths(),
		logger:      logging.GetLogger("transaction"),
		staged:      make(overlay),
	}
}

func (t *Tx) checkOpen() error {
	if t.state != stateOpen {
		return errors.New(errors.ErrInvalidState, "transaction is already closed")
	}
	return nil
}

func (t *Tx) record(o op) {
	t.ops = append(t.ops, o)
	t.logger.Trace().Str("op", string(o.Kind)).Str("path", o.Path).Msg("Staged")
}

// Pending returns the number of staged operations.
func (t *Tx) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Copy stages a copy of src to dst, keeping the source permissions.
func (t *Tx) Copy(src, dst string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}

	from := cleanPath(src)
	info, err := t.stat(from)
	if err != nil {
		return err
	}
	data, err := t.readFile(from)
	if err != nil {
		return err
	}
	return t.writeFile(cleanPath(dst), data, info.Mode().Perm())
}

// RemoveEmptyDir stages removal of dir when it is empty in the staged view
// and reports whether it did.
func (t *Tx) RemoveEmptyDir(dir string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return false, err
	}

	p := cleanPath(dir)
	info, err := t.stat(p)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return false, nil
	}
	entries, err := t.readDir(p)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return false, nil
	}
	t.staged[p] = &node{kind: kindGone}
	t.record(op{Kind: opRemove, Path: p})
	return true, nil
}

// Snapshot marks p for restoration on rollback even when no staged
// operation touches it.
func (t *Tx) Snapshot(p string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.explicit = append(t.explicit, cleanPath(p))
	return nil
}

// Rollback discards everything staged. Nothing has reached the base yet, so
// this never fails. Calling it on a closed transaction does nothing.
func (t *Tx) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateOpen {
		return
	}
	t.logger.Debug().Int("discarded", len(t.ops)).Msg("Transaction rolled back")
	t.discard(stateRolledBack)
}

func (t *Tx) discard(s state) {
	t.staged = make(overlay)
	t.ops = nil
	t.explicit = nil
	t.state = s
}

// Commit applies every staged operation to the base. On failure every
// touched path is restored and the error carries code TRANSACTION; when
// some paths could not be restored the code is ROLLBACK and the error
// detail "unrestored" lists them.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		t.discard(stateRolledBack)
		return errors.FromContext(err)
	}
	if len(t.ops) == 0 {
		t.discard(stateCommitted)
		return nil
	}

	done := logging.TimeOperation(t.logger, "commit")
	defer done()

	snaps, touched, err := t.capture()
	if err != nil {
		t.discard(stateRolledBack)
		return errors.Wrap(err, errors.ErrTransaction, "failed to snapshot transaction targets")
	}
	if err := writeJournal(t.base, t.journalPath, snaps); err != nil {
		_ = t.base.Remove(t.journalPath)
		_ = t.base.Remove(journalTemp(t.journalPath))
		t.discard(stateRolledBack)
		return err
	}

	undone, runErr := t.run(ctx, snaps, touched)
	if runErr == nil {
		// removing the journal is the commit point
		err := t.base.Remove(t.journalPath)
		if err == nil {
			t.logger.Debug().Int("operations", len(t.ops)).Int("snapshots", len(snaps)).Msg("Transaction committed")
			t.discard(stateCommitted)
			return nil
		}
		runErr = errors.Wrap(err, errors.ErrTransaction, "failed to clear transaction journal")
	}

	t.discard(stateRolledBack)
	pending := make([]snapshot, 0, len(snaps))
	for i, s := range snaps {
		if !undone[i] {
			pending = append(pending, s)
		}
	}
	t.logger.Warn().Err(runErr).
		Int("snapshots", len(snaps)).
		Int("undone", len(undone)).
		Msg("Commit failed, restoring remaining snapshots")
	if failed := restore(t.base, pending, t.logger); len(failed) > 0 {
		return errors.Wrapf(runErr, errors.ErrRollback,
			"rollback failed, %d resources could not be restored", len(failed)).
			WithDetail("unrestored", failed).
			WithDetail("journal", t.journalPath)
	}
	if err := t.base.Remove(t.journalPath); err != nil && !isNotExist(err) {
		t.logger.Warn().Err(err).Str("journal", t.journalPath).Msg("Failed to clear journal after rollback")
	}
	return errors.Wrap(runErr, errors.ErrTransaction, "transaction rolled back")
}

// run executes the staged operations as one synthfs pipeline with rollback
// enabled. Each operation acts on the base filesystem and undoes itself by
// restoring the snapshots of the paths it touched. The returned set holds
// the snapshot indices those undos put back; the first error an operation
// reports is returned in preference to the pipeline's own.
func (t *Tx) run(ctx context.Context, snaps []snapshot, touched [][]int) (map[int]bool, error) {
	var opErr error
	undone := make(map[int]bool)

	synthOps := make([]synthfs.Operation, 0, len(t.ops))
	for i := range t.ops {
		o := t.ops[i]
		id := fmt.Sprintf("%04d-%s-%s", i, o.Kind, filepath.Base(o.Path))
		execute := func(ctx context.Context, _ filesystem.FileSystem) error {
			if err := ctx.Err(); err != nil {
				if opErr == nil {
					opErr = errors.FromContext(err)
				}
				return err
			}
			if err := t.apply(o); err != nil {
				if opErr == nil {
					opErr = errors.Wrapf(err, errors.ErrFileWrite, "failed to %s %s", o.Kind, o.Path)
				}
				return err
			}
			return nil
		}
		synthOps = append(synthOps, synthfs.NewCustomOperationAdapter(synthfs.NewCustomOperation(id, execute).
			WithRollback(t.undo(o, snaps, touched[i], undone))))
	}

	options := synthfs.DefaultPipelineOptions()
	options.RollbackOnError = true

	t.logger.Debug().Int("operationCount", len(synthOps)).Msg("Executing staged operations")
	result, err := synthfs.RunWithOptions(ctx, t.pipelineFS, options, synthOps...)
	if result != nil {
		for _, r := range result.GetOperations() {
			if res, ok := r.(synthfs.OperationResult); ok && res.Status != synthfs.StatusSuccess {
				t.logger.Debug().
					Str("operationID", string(res.OperationID)).
					AnErr("error", res.Error).
					Msg("Operation did not complete")
			}
		}
	}
	if opErr == nil && ctx.Err() != nil {
		opErr = errors.FromContext(ctx.Err())
	}
	if opErr != nil {
		return undone, opErr
	}
	if err != nil {
		return undone, errors.Wrap(err, errors.ErrTransaction, "failed to execute staged operations")
	}
	return undone, nil
}

// undo returns the rollback of o: the snapshots of the paths o touched are
// put back and marked in undone. Paths already put back by a later
// operation's undo are skipped since every snapshot is the pre-commit state.
func (t *Tx) undo(o op, snaps []snapshot, owned []int, undone map[int]bool) func(context.Context, filesystem.FileSystem) error {
	return func(context.Context, filesystem.FileSystem) error {
		var subset []snapshot
		var indices []int
		for _, i := range owned {
			if !undone[i] {
				subset = append(subset, snaps[i])
				indices = append(indices, i)
			}
		}
		failed := restore(t.base, subset, t.logger)
		bad := make(map[string]bool, len(failed))
		for _, p := range failed {
			bad[p] = true
		}
		for _, i := range indices {
			if !bad[snaps[i].Path] {
				undone[i] = true
			}
		}
		if len(failed) > 0 {
			return errors.Newf(errors.ErrRollback, "failed to undo %s %s", o.Kind, o.Path).
				WithDetail("unrestored", failed)
		}
		t.logger.Trace().Str("op", string(o.Kind)).Str("path", o.Path).Msg("Undone")
		return nil
	}
}

func (t *Tx) apply(o op) error {
	switch o.Kind {
	case opWrite:
		return t.base.WriteFile(o.Path, o.Data, fs.FileMode(o.Perm))
	case opMkdir:
		return t.base.MkdirAll(o.Path, fs.FileMode(o.Perm))
	case opRemove:
		if err := t.base.Remove(o.Path); err != nil && !isNotExist(err) {
			return err
		}
		return nil
	case opRemoveAll:
		return t.base.RemoveAll(o.Path)
	}
	return errors.Newf(errors.ErrInternal, "unknown staged operation %q", o.Kind)
}
