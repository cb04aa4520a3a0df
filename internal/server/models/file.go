package models

import (
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
)

// ObjectRef points at a stored object in the object store.
type ObjectRef struct {
	Key  string `json:"objectKey"`
	URL  string `json:"objectUrl"`
	Size int64  `json:"size"`
}

// FileVersion is a superseded live state of a file.
type FileVersion struct {
	ID        string    `json:"id"`
	Object    ObjectRef `json:"object"`
	FileType  string    `json:"fileType,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// File is the metadata of an uploaded object plus its version history.
type File struct {
	ID         string        `json:"id"`
	OwnerID    string        `json:"owner"`
	FolderID   *string       `json:"folder"`
	FileName   string        `json:"fileName"`
	FileType   string        `json:"fileType"`
	Object     ObjectRef     `json:"object"`
	Hash       string        `json:"hash,omitempty"`
	Versions   []FileVersion `json:"versions"`
	Share      ShareSettings `json:"share"`
	IsFavorite bool          `json:"isFavorite"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// PushVersion records the current live state as a version and makes next
// live. The snapshot is timestamped with the moment the live state was last
// written. It returns the recorded version.
func (f *File) PushVersion(versionID string, next ObjectRef, fileType, hash string, now time.Time) FileVersion {
	v := FileVersion{
		ID:        versionID,
		Object:    f.Object,
		FileType:  f.FileType,
		Hash:      f.Hash,
		CreatedAt: f.UpdatedAt,
	}
	f.Versions = append(f.Versions, v)
	f.Object = next
	f.FileType = fileType
	f.Hash = hash
	f.UpdatedAt = now
	return v
}

// Version looks up a version by id.
func (f *File) Version(id string) (FileVersion, bool) {
	for _, v := range f.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return FileVersion{}, false
}

// RestoreVersion swaps the version with the given id and the live state:
// the version is removed from the history, its object becomes live and the
// previous live state is appended under newID. Restoring the returned
// version afterwards yields the original live state again.
func (f *File) RestoreVersion(versionID, newID string, now time.Time) (restored, pushed FileVersion, err error) {
	idx := -1
	for i, v := range f.Versions {
		if v.ID == versionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return FileVersion{}, FileVersion{}, common.ErrorNotFound
	}

	restored = f.Versions[idx]
	pushed = FileVersion{
		ID:        newID,
		Object:    f.Object,
		FileType:  f.FileType,
		Hash:      f.Hash,
		CreatedAt: f.UpdatedAt,
	}

	versions := make([]FileVersion, 0, len(f.Versions))
	versions = append(versions, f.Versions[:idx]...)
	versions = append(versions, f.Versions[idx+1:]...)
	f.Versions = append(versions, pushed)

	f.Object = restored.Object
	f.Hash = restored.Hash
	// An empty snapshot type leaves the live type in place.
	if restored.FileType != "" {
		f.FileType = restored.FileType
	}
	f.UpdatedAt = now
	return restored, pushed, nil
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	out := *f
	if f.FolderID != nil {
		id := *f.FolderID
		out.FolderID = &id
	}
	out.Versions = append([]FileVersion(nil), f.Versions...)
	out.Share = f.Share.clone()
	return &out
}
