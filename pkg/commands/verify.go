package commands

import (
	stderrors "errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/filesystem"
	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/logging"
)

// Problems reported by Verify.
const (
	ProblemMissing        = "missing"
	ProblemModified       = "modified"
	ProblemBackupMissing  = "backup missing"
	ProblemBackupModified = "backup modified"
)

// VerifyProblem is one data file whose disk state disagrees with the
// install log.
type VerifyProblem struct {
	Path    string
	Owner   string
	Problem string
}

// VerifyResult is the output of Verify.
type VerifyResult struct {
	Checked  int
	Problems []VerifyProblem
}

// OK reports whether every checked file matched.
func (r *VerifyResult) OK() bool { return len(r.Problems) == 0 }

// Verify compares every tracked data file with the hash its current owner
// wrote, and every superseded layer with its backup in the overwrites
// directory.
func Verify(env *Environment) (*VerifyResult, error) {
	log := logging.GetLogger("commands.verify")
	log.Debug().Msg("Executing command")

	ledger, err := env.Store.Snapshot()
	if err != nil {
		return nil, err
	}
	gameDir := env.Paths.GameDir()
	overwrites := env.Paths.OverwritesDir()

	result := &VerifyResult{}
	for _, rel := range ledger.Files() {
		stack := ledger.FileStack(rel)
		top, ok := stack.Current()
		if !ok {
			continue
		}
		result.Checked++

		cased, live, err := filesystem.LivePath(env.FS, gameDir, rel)
		if err != nil {
			return nil, err
		}
		if problem, err := compare(env, live, top.Value); err != nil {
			return nil, err
		} else if problem != "" {
			result.Problems = append(result.Problems, VerifyProblem{Path: cased, Owner: top.Owner.String(), Problem: problem})
		}

		if len(stack) < 2 {
			continue
		}
		dir, err := backupDir(env, overwrites, cased)
		if err != nil {
			return nil, err
		}
		for _, e := range stack[:len(stack)-1] {
			backup, err := findBackup(env, dir, e.Owner.String()+"_"+path.Base(cased))
			if err != nil {
				return nil, err
			}
			problem := ProblemBackupMissing
			if backup != "" {
				if problem, err = compare(env, backup, e.Value); err != nil {
					return nil, err
				}
				if problem == ProblemModified {
					problem = ProblemBackupModified
				}
			}
			if problem != "" {
				result.Problems = append(result.Problems, VerifyProblem{Path: cased, Owner: e.Owner.String(), Problem: problem})
			}
		}
	}

	log.Info().Int("checked", result.Checked).Int("problems", len(result.Problems)).Msg("Command finished")
	return result, nil
}

// compare returns the problem with the file at p, or "" when its hash
// matches. An empty hash was recorded by an older ledger and matches any
// content.
func compare(env *Environment, p, hash string) (string, error) {
	data, err := env.FS.ReadFile(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return ProblemMissing, nil
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", p)
	}
	if hash != "" && !strings.EqualFold(installer.HashBytes(data), hash) {
		return ProblemModified, nil
	}
	return "", nil
}

func backupDir(env *Environment, overwrites, cased string) (string, error) {
	dir := path.Dir(cased)
	if dir == "." {
		return overwrites, nil
	}
	_, abs, err := filesystem.LivePath(env.FS, overwrites, dir)
	return abs, err
}

func findBackup(env *Environment, dir, name string) (string, error) {
	entries, err := env.FS.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}
