// Package models contains the data types returned to explorer clients.
package models

import "path"

// DefaultPermissions is reported for every entry; the store has no
// permission model of its own.
const DefaultPermissions = "rw"

// FileEntry describes a file or directory in a listing or operation result.
//
// Size is depth dependent in listings: exact bytes for files, the child
// count for a first-level directory, and 0 for a second-level directory.
type FileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Created     int64  `json:"created"`
	Modified    int64  `json:"modified"`
	IsDirectory bool   `json:"isDirectory"`
	Permissions string `json:"permissions"`
}

// NewFileEntry builds an entry for a file at p.
func NewFileEntry(p string, size, created, modified int64) FileEntry {
	return FileEntry{
		Name:        path.Base(p),
		Path:        p,
		Size:        size,
		Created:     created,
		Modified:    modified,
		Permissions: DefaultPermissions,
	}
}

// NewDirEntry builds an entry for a directory at p with the given size hint.
func NewDirEntry(p string, size int64) FileEntry {
	return FileEntry{
		Name:        path.Base(p),
		Path:        p,
		Size:        size,
		IsDirectory: true,
		Permissions: DefaultPermissions,
	}
}
