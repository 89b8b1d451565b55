// Package source provides the SourceLoader external interface (spec §6)
// used by the directive resolver to load include targets, plus a default
// filesystem-backed implementation.
package source

import (
	"io/fs"
	"path"
)

// Loader is the external collaborator that resolves and reads include
// targets. Implementations must be safe for concurrent Exists/Read/Resolve
// calls against distinct paths; the resolver never mutates loader state.
type Loader interface {
	Exists(p string) bool
	Read(p string) (string, error)
	Resolve(base, relative string) string
}

// FSLoader implements Loader over an fs.FS, following the candidate-path
// resolution style of the teacher's include manager: a bare name is tried
// as-is and with .tt/.tmpl extensions relative to the including item's
// directory.
type FSLoader struct {
	FS         fs.FS
	Extensions []string // tried in order when the bare name doesn't exist
}

// NewFSLoader returns a Loader with the default include-file extensions.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{FS: fsys, Extensions: []string{"", ".tt", ".tmpl", ".tpl"}}
}

func (l *FSLoader) Exists(p string) bool {
	_, err := fs.Stat(l.FS, p)
	return err == nil
}

func (l *FSLoader) Read(p string) (string, error) {
	data, err := fs.ReadFile(l.FS, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Resolve joins relative against base's directory. If relative is not a
// path at all (no slash, no known extension) but names an existing bundle
// item, callers should treat resolution as identity per spec §9's open
// question (b); FSLoader itself only handles filesystem paths.
func (l *FSLoader) Resolve(base, relative string) string {
	dir := path.Dir(base)
	if dir == "." || dir == "" {
		return l.candidate(relative)
	}
	return l.candidate(path.Join(dir, relative))
}

func (l *FSLoader) candidate(p string) string {
	for _, ext := range l.Extensions {
		candidate := p + ext
		if l.Exists(candidate) {
			return candidate
		}
	}
	return p
}
