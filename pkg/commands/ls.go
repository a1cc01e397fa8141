package commands

import (
	"path"
	"strings"

	"github.com/arthur-debert/modman/pkg/archive"
	"github.com/arthur-debert/modman/pkg/logging"
)

// ArchiveEntry is one line of an archive listing.
type ArchiveEntry struct {
	Name string
	Dir  bool
	Size int64
	// Nested marks files that are containers themselves; they can be
	// listed with an arch: path.
	Nested bool
}

// ArchiveListing is the output of ListArchive.
type ArchiveListing struct {
	Path    string
	Format  string
	Dir     string
	Entries []ArchiveEntry
}

// ListArchiveOptions defines the options for ListArchive.
type ListArchiveOptions struct {
	// Path is a disk path or an arch:<outer>//<inner> path.
	Path string
	// Dir restricts the listing to one directory inside the container.
	Dir       string
	Recursive bool
}

// ListArchive lists the contents of a container, directories first.
func ListArchive(env *Environment, opts ListArchiveOptions) (*ArchiveListing, error) {
	log := logging.GetLogger("commands.ls")
	log.Debug().Str("path", opts.Path).Str("dir", opts.Dir).Msg("Executing command")

	p := opts.Path
	if !archive.IsArchivePath(p) {
		if resolved, err := env.ResolveMod(p); err == nil {
			p = resolved
		}
	}
	a, err := archive.Open(env.FS, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	dir := strings.Trim(opts.Dir, "/")
	listing := &ArchiveListing{Path: p, Format: a.Format().String(), Dir: dir}
	if !opts.Recursive {
		for _, d := range a.Directories(dir, false) {
			listing.Entries = append(listing.Entries, ArchiveEntry{Name: path.Base(d) + "/", Dir: true})
		}
	}
	files, err := a.Files(dir, "", opts.Recursive)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		entry := ArchiveEntry{Name: f, Nested: isNested(env.FS, p, f, env.Config.Archive.NonArchive)}
		if !opts.Recursive {
			entry.Name = path.Base(f)
		}
		if e, ok := a.Entry(f); ok {
			entry.Size = e.Size
		}
		listing.Entries = append(listing.Entries, entry)
	}

	log.Debug().Int("entries", len(listing.Entries)).Msg("Command finished")
	return listing, nil
}
