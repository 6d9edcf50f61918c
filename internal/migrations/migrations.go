// Package migrations owns the database schema. SQL files follow the
// NNNNNNNNNN_description.up.sql / .down.sql naming convention and are
// embedded into the binary.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/go-extras/go-kit/must"
)

//go:embed sql/*.sql
var embedded embed.FS

// FS returns the embedded migration files.
func FS() fs.FS {
	return must.Must(fs.Sub(embedded, "sql"))
}

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// FileName is the parsed form of a migration file name.
type FileName struct {
	Version   int
	Name      string
	Direction string
}

var fileNamePattern = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

// ParseFileName splits a migration file name into version, name and direction.
func ParseFileName(name string) (FileName, error) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return FileName{}, fmt.Errorf("invalid migration file name %q", name)
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return FileName{}, fmt.Errorf("invalid migration version in %q: %w", name, err)
	}
	return FileName{Version: version, Name: m[2], Direction: m[3]}, nil
}

// Load reads every migration from fsys, sorted by version. Files that do not
// match the naming convention are ignored; a version missing its up or down
// half is an error.
func Load(fsys fs.FS) ([]Migration, error) {
	byVersion := make(map[int]*Migration)
	hasUp := make(map[int]bool)
	hasDown := make(map[int]bool)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		file, err := ParseFileName(d.Name())
		if err != nil {
			return nil
		}
		payload, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		m, ok := byVersion[file.Version]
		if !ok {
			m = &Migration{Version: file.Version, Description: file.Name}
			byVersion[file.Version] = m
		}
		switch file.Direction {
		case "up":
			m.Up = string(payload)
			hasUp[file.Version] = true
		case "down":
			m.Down = string(payload)
			hasDown[file.Version] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}

	var incomplete []int
	out := make([]Migration, 0, len(byVersion))
	for version, m := range byVersion {
		if !hasUp[version] || !hasDown[version] {
			incomplete = append(incomplete, version)
			continue
		}
		out = append(out, *m)
	}
	if len(incomplete) > 0 {
		sort.Ints(incomplete)
		return nil, fmt.Errorf("incomplete migrations found: %v", incomplete)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
