package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PathEntry is one ancestor folder in a breadcrumb path.
type PathEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Path lists every ancestor of a folder, root first, ending with the
// immediate parent. A root folder has an empty path.
type Path []PathEntry

// Child returns the path of a folder placed directly under the folder with
// the given id and name, whose own path is p.
func (p Path) Child(id, name string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, PathEntry{ID: id, Name: name})
}

// IndexOf returns the position of id in p, or -1.
func (p Path) IndexOf(id string) int {
	for i, e := range p {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (p Path) Contains(id string) bool {
	return p.IndexOf(id) >= 0
}

// Rename returns a copy of p with the entry for id carrying name.
// Other entries are left as they are.
func (p Path) Rename(id, name string) Path {
	out := make(Path, len(p))
	copy(out, p)
	for i := range out {
		if out[i].ID == id {
			out[i].Name = name
		}
	}
	return out
}

// Rebase replaces every entry up to and including id with prefix.
// prefix must end with the entry for id. Paths that do not contain id are
// returned unchanged.
func (p Path) Rebase(id string, prefix Path) Path {
	i := p.IndexOf(id)
	if i < 0 {
		return p
	}
	out := make(Path, 0, len(prefix)+len(p)-i-1)
	out = append(out, prefix...)
	return append(out, p[i+1:]...)
}

// Value stores the path as a JSON array.
func (p Path) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]PathEntry(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Path) Scan(src any) error {
	return scanJSON(src, p)
}

// UserIDs is the explicit set of users a folder or file is shared with.
type UserIDs []string

func (u UserIDs) Contains(id string) bool {
	for _, v := range u {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns u with id appended unless it is already present.
func (u UserIDs) Add(id string) UserIDs {
	if u.Contains(id) {
		return u
	}
	return append(u, id)
}

// Remove returns a copy of u without id.
func (u UserIDs) Remove(id string) UserIDs {
	out := make(UserIDs, 0, len(u))
	for _, v := range u {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (u UserIDs) Value() (driver.Value, error) {
	if u == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(u))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (u *UserIDs) Scan(src any) error {
	return scanJSON(src, u)
}

func scanJSON(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	return json.Unmarshal(b, dst)
}
