package models

import "time"

// Folder is a node of an owner's folder tree.
type Folder struct {
	ID         string        `json:"id"`
	OwnerID    string        `json:"owner"`
	Name       string        `json:"name"`
	ParentID   *string       `json:"parent"`
	Path       Path          `json:"path"`
	Share      ShareSettings `json:"share"`
	IsFavorite bool          `json:"isFavorite"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// ChildPath is the path every direct child of f must carry.
func (f *Folder) ChildPath() Path {
	return f.Path.Child(f.ID, f.Name)
}

// Clone returns a deep copy of f.
func (f *Folder) Clone() *Folder {
	out := *f
	if f.ParentID != nil {
		p := *f.ParentID
		out.ParentID = &p
	}
	out.Path = append(Path(nil), f.Path...)
	out.Share = f.Share.clone()
	return &out
}
