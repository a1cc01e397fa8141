// Package installer installs, upgrades and uninstalls mods. Every operation
// runs under the process-wide lock inside one transaction: data files,
// settings files, shader packages and the install log either all move
// forward or all stay as they were.
package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/config"
	"github.com/arthur-debert/modman/pkg/conflict"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/settings"
	"github.com/arthur-debert/modman/pkg/shaders"
	"github.com/arthur-debert/modman/pkg/transaction"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/rs/zerolog"
)

// Layout locates everything an operation touches.
type Layout struct {
	// GameDir is the managed root that data file paths are relative to.
	GameDir string
	// OverwritesDir mirrors GameDir and holds the bytes of superseded files.
	OverwritesDir string
	// JournalPath is where commits keep their crash-recovery journal.
	JournalPath string
	// SettingsFile maps a logical settings-file name to its path.
	SettingsFile settings.PathResolver
	// ShaderPackage maps a shader package number to its file.
	ShaderPackage shaders.PathFunc
}

// NewLayout derives the layout from resolved paths and configuration.
func NewLayout(p paths.Paths, cfg *config.Config) Layout {
	game := p.GameDir()
	return Layout{
		GameDir:       game,
		OverwritesDir: p.OverwritesDir(),
		JournalPath:   p.JournalPath(),
		SettingsFile: func(name string) (string, error) {
			return cfg.SettingsFile(name, game)
		},
		ShaderPackage: func(pkg int) string {
			return cfg.ShaderPackagePath(game, pkg)
		},
	}
}

// Options tune an Installer.
type Options struct {
	// Prompter answers overwrite questions. Required when Policy is prompt.
	Prompter conflict.Prompter
	// Policy is one of the config.Policy values. Empty means prompt.
	Policy string
	// Progress receives archive preparation and per-file progress.
	Progress types.Progress
	// Lock overrides the process-wide lock, for tests.
	Lock *Lock
	// Streaming reads each mod file on demand instead of holding one archive
	// decoder open for the whole install.
	Streaming bool
}

// Installer runs install and uninstall operations.
type Installer struct {
	fsys      types.FS
	layout    Layout
	store     *installlog.Store
	lock      *Lock
	prompter  conflict.Prompter
	policy    string
	progress  types.Progress
	streaming bool
	logger    zerolog.Logger
}

// New creates an Installer writing through fsys.
func New(fsys types.FS, layout Layout, store *installlog.Store, opts Options) *Installer {
	in := &Installer{
		fsys:      fsys,
		layout:    layout,
		store:     store,
		lock:      opts.Lock,
		prompter:  opts.Prompter,
		policy:    opts.Policy,
		progress:  opts.Progress,
		streaming: opts.Streaming,
		logger:    logging.GetLogger("installer"),
	}
	if in.lock == nil {
		in.lock = processLock
	}
	if in.policy == "" {
		in.policy = config.PolicyPrompt
	}
	if in.progress == nil {
		in.progress = types.NoProgress{}
	}
	return in
}

// Store returns the install log store the installer commits to.
func (in *Installer) Store() *installlog.Store { return in.store }

// Recover replays a journal left by an interrupted commit. It takes the
// lock, so it never runs under an operation in progress.
func (in *Installer) Recover(ctx context.Context) (bool, error) {
	release, err := in.lock.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	return in.recover()
}

func (in *Installer) recover() (bool, error) {
	recovered, err := transaction.Recover(in.fsys, in.layout.JournalPath)
	if recovered {
		in.logger.Warn().Str("journal", in.layout.JournalPath).Msg("Recovered an interrupted commit")
		in.store.Invalidate()
	}
	return recovered, err
}

// Kind names an operation.
type Kind string

const (
	KindInstall   Kind = "install"
	KindUninstall Kind = "uninstall"
	KindUpgrade   Kind = "upgrade"
)

func (k Kind) past() string {
	if k == KindUpgrade {
		return "upgraded"
	}
	return string(k) + "ed"
}

func (k Kind) describe() string {
	if k == KindUpgrade {
		return "in-place upgrade"
	}
	return string(k)
}

// Result is the outcome of one operation.
type Result struct {
	Kind Kind
	// Mod is the key of the mod the operation ran for.
	Mod     string
	Success bool
	// Message is the text shown to the user.
	Message string
	// Err is the failure, nil on success.
	Err error
	// Warnings are problems that did not stop the operation.
	Warnings []string
	// Unrestored lists resources a failed rollback could not put back.
	Unrestored []string

	// Files, Settings and Shaders count the resources written or reverted.
	Files    int
	Settings int
	Shaders  int
	// Skipped lists data files left alone because of an overwrite answer.
	Skipped []string
	// UpToDate is set when an upgrade found the same version installed and
	// changed nothing.
	UpToDate bool
}

func (r *Result) finish() {
	verb := r.Kind.past()
	switch {
	case r.Success && r.UpToDate:
		r.Message = "The mod is already at this version."
		return
	case r.Success:
		r.Message = fmt.Sprintf("The mod was successfully %s.", verb)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A problem occurred during %s:\n%s\n", r.Kind.describe(), r.Err)
	if len(r.Unrestored) > 0 {
		b.WriteString("The following resources could not be restored:\n")
		for _, p := range r.Unrestored {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	fmt.Fprintf(&b, "The mod was not %s.", verb)
	r.Message = b.String()
}

// operation is the state shared by every step of one install or uninstall.
type operation struct {
	ctx       context.Context
	kind      Kind
	modKey    string
	layout    Layout
	tx        *transaction.Tx
	ledger    *installlog.Log
	mm        *mergemodule.MergeModule
	resolver  *conflict.Resolver
	settings  *settings.Editor
	shaders   *shaders.Editor
	progress  types.Progress
	streaming bool
	// upgrade makes writes to resources the mod already holds land in its
	// existing slot instead of on top. previous is what the installed
	// version wrote.
	upgrade  bool
	previous *mergemodule.MergeModule
	result   *Result
	logger   zerolog.Logger
}

func (op *operation) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	op.result.Warnings = append(op.result.Warnings, msg)
	op.logger.Warn().Msg(msg)
}

// checkContext is called between resources so cancellation behaves like
// any other failure.
func (op *operation) checkContext() error {
	return errors.FromContext(op.ctx.Err())
}

// run is the catch boundary shared by install and uninstall: it takes the
// lock, recovers a leftover journal, opens the transaction, runs body and
// then either commits body's work together with the new install log or
// rolls everything back.
func (in *Installer) run(ctx context.Context, kind Kind, modKey string, body func(op *operation) error) *Result {
	result := &Result{Kind: kind, Mod: modKey}
	logger := logging.GetLogger("installer." + string(kind)).With().Str("mod", modKey).Logger()
	done := logging.TimeOperation(logger, string(kind))
	defer done()

	err := in.runLocked(ctx, kind, modKey, logger, result, body)
	if err != nil {
		result.Err = err
		result.Unrestored = transaction.Unrestored(err)
		logger.Error().Err(err).Strs("unrestored", result.Unrestored).Msg("Operation failed")
	} else {
		result.Success = true
	}
	result.finish()
	return result
}

func (in *Installer) runLocked(ctx context.Context, kind Kind, modKey string, logger zerolog.Logger, result *Result, body func(op *operation) error) error {
	release, err := in.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := in.recover(); err != nil {
		return err
	}
	ledger, err := in.store.Snapshot()
	if err != nil {
		return err
	}

	tx := transaction.New(in.fsys, in.layout.JournalPath)
	op := &operation{
		ctx:       ctx,
		kind:      kind,
		modKey:    modKey,
		layout:    in.layout,
		tx:        tx,
		ledger:    ledger,
		mm:        mergemodule.New(),
		resolver:  conflict.NewResolver(tx, in.layout.GameDir, in.prompter),
		settings:  settings.NewEditor(tx, in.layout.SettingsFile),
		shaders:   shaders.NewEditor(tx, in.layout.ShaderPackage),
		progress:  in.progress,
		streaming: in.streaming,
		result:    result,
		logger:    logger,
	}
	switch in.policy {
	case config.PolicyYes:
		op.resolver.Preset(true)
	case config.PolicyNo:
		op.resolver.Preset(false)
	default:
		if in.prompter == nil {
			tx.Rollback()
			return errors.New(errors.ErrInvalidInput, "an overwrite prompter is required when the policy is prompt")
		}
	}

	if err := body(op); err != nil {
		tx.Rollback()
		return err
	}
	if err := in.stageLedger(op); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	in.store.Replace(op.ledger)
	logger.Info().
		Int("files", result.Files).
		Int("settings", result.Settings).
		Int("shaders", result.Shaders).
		Int("prompts", op.resolver.Prompts()).
		Msg("Committed")
	return nil
}

func (in *Installer) stageLedger(op *operation) error {
	data, err := op.ledger.Marshal()
	if err != nil {
		return err
	}
	p := in.store.Path()
	if err := op.tx.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(p))
	}
	if err := op.tx.WriteFile(p, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to stage install log %s", p)
	}
	return nil
}
