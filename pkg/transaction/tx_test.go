// pkg/transaction/tx_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: MemoryFS
// PURPOSE: Test staged reads, commit, rollback at every failure point and recovery

package transaction

import (
	"context"
	"io/fs"
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const journalPath = "/state/transaction.journal"

func setupBase(t *testing.T) *testutil.MemoryFS {
	t.Helper()
	base := testutil.NewMemoryFS()
	testutil.WriteFile(t, base, "/game/Data/texture.dds", []byte("original"))
	testutil.WriteFile(t, base, "/game/Data/meshes/a.nif", []byte("mesh-a"))
	testutil.WriteFile(t, base, "/game/Data/meshes/b.nif", []byte("mesh-b"))
	testutil.WriteFile(t, base, "/game/Data/old/readme.txt", []byte("old"))
	require.NoError(t, base.MkdirAll("/game/Data/empty", 0755))
	require.NoError(t, base.MkdirAll("/state", 0755))
	return base
}

// stageWork stages one of each kind of operation an install performs.
func stageWork(t *testing.T, tx *Tx) {
	t.Helper()
	require.NoError(t, tx.WriteFile("/game/Data/texture.dds", []byte("alpha"), 0644))
	require.NoError(t, tx.MkdirAll("/game/Data/new/deep", 0755))
	require.NoError(t, tx.WriteFile("/game/Data/new/deep/file.esp", []byte("plugin"), 0644))
	require.NoError(t, tx.Copy("/game/Data/meshes/a.nif", "/game/Data/new/a-copy.nif"))
	require.NoError(t, tx.Remove("/game/Data/meshes/b.nif"))
	require.NoError(t, tx.RemoveAll("/game/Data/old"))
	removed, err := tx.RemoveEmptyDir("/game/Data/empty")
	require.NoError(t, err)
	require.True(t, removed)
}

func TestStagedView(t *testing.T) {
	base := setupBase(t)
	before := base.Snapshot()
	tx := New(base, journalPath)
	stageWork(t, tx)

	assert.Equal(t, before, base.Snapshot(), "staging never touches the base")

	data, err := tx.ReadFile("/game/Data/texture.dds")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	_, err = tx.ReadFile("/game/Data/old/readme.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = tx.Stat("/game/Data/meshes/b.nif")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	entries, err := tx.ReadDir("/game/Data")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"meshes", "new", "texture.dds"}, names)

	info, err := tx.Stat("/game/Data/new/deep")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, 7, tx.Pending())
}

func TestRecreatedDirectoryHidesRemovedChildren(t *testing.T) {
	base := setupBase(t)
	tx := New(base, journalPath)

	require.NoError(t, tx.RemoveAll("/game/Data/meshes"))
	require.NoError(t, tx.MkdirAll("/game/Data/meshes", 0755))
	require.NoError(t, tx.WriteFile("/game/Data/meshes/c.nif", []byte("c"), 0644))

	entries, err := tx.ReadDir("/game/Data/meshes")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c.nif", entries[0].Name())
	_, err = tx.ReadFile("/game/Data/meshes/a.nif")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, tx.Commit(context.Background()))
	assert.False(t, testutil.Exists(base, "/game/Data/meshes/a.nif"))
	assert.Equal(t, "c", testutil.ReadString(t, base, "/game/Data/meshes/c.nif"))
}

func TestStagingErrors(t *testing.T) {
	base := setupBase(t)
	tx := New(base, journalPath)

	err := tx.WriteFile("/game/Missing/file.txt", []byte("x"), 0644)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	err = tx.Remove("/game/Data/meshes")
	assert.Error(t, err, "non-empty directories need RemoveAll")

	err = tx.MkdirAll("/game/Data/texture.dds/sub", 0755)
	assert.Error(t, err)

	removed, err := tx.RemoveEmptyDir("/game/Data/meshes")
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = tx.RemoveEmptyDir("/game/Data/nowhere")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.NoError(t, tx.RemoveAll("/game/Data/nowhere"))
	assert.Equal(t, 0, tx.Pending())
}

func TestRename(t *testing.T) {
	base := setupBase(t)
	tx := New(base, journalPath)

	require.NoError(t, tx.Rename("/game/Data/meshes/a.nif", "/game/Data/a.nif"))
	require.NoError(t, tx.Commit(context.Background()))

	assert.False(t, testutil.Exists(base, "/game/Data/meshes/a.nif"))
	assert.Equal(t, "mesh-a", testutil.ReadString(t, base, "/game/Data/a.nif"))
}

func TestCommitApplies(t *testing.T) {
	base := setupBase(t)
	tx := New(base, journalPath)
	stageWork(t, tx)

	require.NoError(t, tx.Commit(context.Background()))

	assert.Equal(t, "alpha", testutil.ReadString(t, base, "/game/Data/texture.dds"))
	assert.Equal(t, "plugin", testutil.ReadString(t, base, "/game/Data/new/deep/file.esp"))
	assert.Equal(t, "mesh-a", testutil.ReadString(t, base, "/game/Data/new/a-copy.nif"))
	assert.False(t, testutil.Exists(base, "/game/Data/meshes/b.nif"))
	assert.False(t, testutil.Exists(base, "/game/Data/old"))
	assert.False(t, testutil.Exists(base, "/game/Data/empty"))
	assert.False(t, testutil.Exists(base, journalPath), "journal is cleared on commit")

	err := tx.WriteFile("/game/Data/late.txt", nil, 0644)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidState))
	err = tx.Commit(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidState))
}

func TestEmptyCommit(t *testing.T) {
	base := setupBase(t)
	_, before := base.Stats()

	tx := New(base, journalPath)
	require.NoError(t, tx.Commit(context.Background()))

	_, after := base.Stats()
	assert.Equal(t, before, after)
}

func TestRollbackDiscards(t *testing.T) {
	base := setupBase(t)
	before := base.Snapshot()
	tx := New(base, journalPath)
	stageWork(t, tx)

	tx.Rollback()
	tx.Rollback()

	assert.Equal(t, before, base.Snapshot())
	assert.True(t, errors.IsErrorCode(tx.Commit(context.Background()), errors.ErrInvalidState))
}

func TestCommitIsAllOrNothing(t *testing.T) {
	probe := setupBase(t)
	_, start := probe.Stats()
	tx := New(probe, journalPath)
	stageWork(t, tx)
	require.NoError(t, tx.Commit(context.Background()))
	_, end := probe.Stats()
	total := end - start
	require.Greater(t, total, 2)

	for k := 0; k < total; k++ {
		base := setupBase(t)
		before := base.Snapshot()

		tx := New(base, journalPath)
		stageWork(t, tx)
		base.FailOnce(k)

		err := tx.Commit(context.Background())
		require.Error(t, err, "failure after %d of %d mutations", k, total)
		assert.True(t, errors.IsErrorCode(err, errors.ErrTransaction), "k=%d: %v", k, err)
		assert.Equal(t, before, base.Snapshot(), "failure after %d of %d mutations left changes", k, total)
	}
}

func TestCancelledCommit(t *testing.T) {
	base := setupBase(t)
	before := base.Snapshot()
	tx := New(base, journalPath)
	stageWork(t, tx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tx.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled))
	assert.Equal(t, before, base.Snapshot())
}

// cancellingFS cancels the commit context on the first write to trigger.
type cancellingFS struct {
	*testutil.MemoryFS
	trigger string
	cancel  context.CancelFunc
}

func (c *cancellingFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if name == c.trigger {
		c.cancel()
	}
	return c.MemoryFS.WriteFile(name, data, perm)
}

func TestCancelDuringCommitRollsBack(t *testing.T) {
	mem := setupBase(t)
	before := mem.Snapshot()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := &cancellingFS{MemoryFS: mem, trigger: "/game/Data/texture.dds", cancel: cancel}

	tx := New(base, journalPath)
	stageWork(t, tx)

	err := tx.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled))
	assert.Equal(t, before, mem.Snapshot())
}

// brokenRestoreFS fails every write to target after the first one, and
// every write to broken.
type brokenRestoreFS struct {
	*testutil.MemoryFS
	target string
	broken string
	writes int
}

func (b *brokenRestoreFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if name == b.broken {
		return &fs.PathError{Op: "write", Path: name, Err: testutil.ErrInjected}
	}
	if name == b.target {
		b.writes++
		if b.writes > 1 {
			return &fs.PathError{Op: "write", Path: name, Err: testutil.ErrInjected}
		}
	}
	return b.MemoryFS.WriteFile(name, data, perm)
}

func TestRollbackFailureReportsAndRecovers(t *testing.T) {
	mem := setupBase(t)
	before := mem.Snapshot()
	base := &brokenRestoreFS{MemoryFS: mem, target: "/game/Data/texture.dds", broken: "/game/Data/broken.esp"}

	tx := New(base, journalPath)
	require.NoError(t, tx.WriteFile("/game/Data/texture.dds", []byte("alpha"), 0644))
	require.NoError(t, tx.WriteFile("/game/Data/broken.esp", []byte("x"), 0644))

	err := tx.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRollback))
	assert.Equal(t, []string{"/game/Data/texture.dds"}, Unrestored(err))
	assert.Equal(t, "alpha", testutil.ReadString(t, mem, "/game/Data/texture.dds"))
	assert.True(t, testutil.Exists(mem, journalPath), "journal stays until the restore succeeds")

	recovered, err := Recover(mem, journalPath)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, before, mem.Snapshot())
}

func TestRecover(t *testing.T) {
	t.Run("no journal", func(t *testing.T) {
		recovered, err := Recover(setupBase(t), journalPath)
		require.NoError(t, err)
		assert.False(t, recovered)
	})

	t.Run("interrupted commit", func(t *testing.T) {
		base := setupBase(t)
		before := base.Snapshot()
		tx := New(base, journalPath)
		stageWork(t, tx)

		snaps, _, err := tx.capture()
		require.NoError(t, err)
		require.NoError(t, writeJournal(base, journalPath, snaps))
		// half the work lands before the crash
		for _, o := range tx.ops[:3] {
			require.NoError(t, tx.apply(o))
		}

		recovered, err := Recover(base, journalPath)
		require.NoError(t, err)
		assert.True(t, recovered)
		assert.Equal(t, before, base.Snapshot())
	})

	t.Run("incomplete journal is discarded", func(t *testing.T) {
		base := setupBase(t)
		before := base.Snapshot()
		testutil.WriteFile(t, base, journalTemp(journalPath), []byte("trunc"))

		recovered, err := Recover(base, journalPath)
		require.NoError(t, err)
		assert.False(t, recovered)
		assert.Equal(t, before, base.Snapshot())
	})

	t.Run("unreadable journal", func(t *testing.T) {
		base := setupBase(t)
		testutil.WriteFile(t, base, journalPath, []byte("not a journal"))

		_, err := Recover(base, journalPath)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrTransaction))
	})
}

func TestExplicitSnapshot(t *testing.T) {
	base := setupBase(t)
	tx := New(base, journalPath)
	require.NoError(t, tx.Snapshot("/game/Data/meshes"))
	require.NoError(t, tx.WriteFile("/game/Data/texture.dds", []byte("x"), 0644))

	snaps, _, err := tx.capture()
	require.NoError(t, err)
	var paths []string
	for _, s := range snaps {
		paths = append(paths, s.Path)
	}
	assert.Equal(t, []string{
		"/game/Data/texture.dds",
		"/game/Data/meshes",
		"/game/Data/meshes/a.nif",
		"/game/Data/meshes/b.nif",
	}, paths)
}

func TestJournalEncoding(t *testing.T) {
	snaps := []snapshot{
		{Path: "/a", Kind: snapFile, Data: []byte("bytes"), Perm: 0644},
		{Path: "/b", Kind: snapAbsent},
		{Path: "/c", Kind: snapDir, Perm: 0755},
	}
	data, err := encodeJournal(snaps)
	require.NoError(t, err)

	j, err := decodeJournal(data)
	require.NoError(t, err)
	assert.Equal(t, snaps, j.Snapshots)
	assert.False(t, j.Created.IsZero())
}

func TestJournalIsMovedIntoPlace(t *testing.T) {
	base := setupBase(t)
	snaps := []snapshot{{Path: "/game/Data/texture.dds", Kind: snapFile, Data: []byte("original"), Perm: 0644}}

	require.NoError(t, writeJournal(base, journalPath, snaps))

	assert.False(t, testutil.Exists(base, journalTemp(journalPath)))
	data, err := base.ReadFile(journalPath)
	require.NoError(t, err)
	j, err := decodeJournal(data)
	require.NoError(t, err)
	assert.Equal(t, snaps, j.Snapshots)
}

func TestFailedJournalRenameLeavesNothing(t *testing.T) {
	base := setupBase(t)
	before := base.Snapshot()
	base.WithError(journalPath, fs.ErrPermission)

	tx := New(base, journalPath)
	require.NoError(t, tx.WriteFile("/game/Data/texture.dds", []byte("alpha"), 0644))

	err := tx.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTransaction))
	assert.Equal(t, before, base.Snapshot())
}

func TestUndoRestoresEachOperation(t *testing.T) {
	base := setupBase(t)
	before := base.Snapshot()
	tx := New(base, journalPath)
	stageWork(t, tx)

	snaps, touched, err := tx.capture()
	require.NoError(t, err)
	require.Len(t, touched, len(tx.ops))
	for _, o := range tx.ops {
		require.NoError(t, tx.apply(o))
	}
	require.NotEqual(t, before, base.Snapshot())

	undone := make(map[int]bool)
	for i := len(tx.ops) - 1; i >= 0; i-- {
		require.NoError(t, tx.undo(tx.ops[i], snaps, touched[i], undone)(context.Background(), nil))
	}

	assert.Equal(t, before, base.Snapshot())
	assert.Len(t, undone, len(snaps))
}

func TestUndoReportsUnrestoredPaths(t *testing.T) {
	mem := setupBase(t)
	base := &brokenRestoreFS{MemoryFS: mem, target: "/game/Data/texture.dds"}
	tx := New(base, journalPath)
	require.NoError(t, tx.WriteFile("/game/Data/texture.dds", []byte("alpha"), 0644))

	snaps, touched, err := tx.capture()
	require.NoError(t, err)
	require.NoError(t, tx.apply(tx.ops[0]))

	undone := make(map[int]bool)
	err = tx.undo(tx.ops[0], snaps, touched[0], undone)(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRollback))
	assert.Empty(t, undone)
}
