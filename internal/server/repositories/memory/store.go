// Package memory keeps every repository in process memory. It backs the
// "memory" database DSN and the service tests.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/files"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/folders"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/users"
)

// Store holds the records. Repositories hand out clones, never the stored
// pointers.
type Store struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	users   map[string]*models.User
	folders map[string]*models.Folder
	files   map[string]*models.File
}

func NewStore() *Store {
	return &Store{
		users:   map[string]*models.User{},
		folders: map[string]*models.Folder{},
		files:   map[string]*models.File{},
	}
}

type snapshot struct {
	users   map[string]*models.User
	folders map[string]*models.Folder
	files   map[string]*models.File
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		users:   make(map[string]*models.User, len(s.users)),
		folders: make(map[string]*models.Folder, len(s.folders)),
		files:   make(map[string]*models.File, len(s.files)),
	}
	for k, v := range s.users {
		snap.users[k] = v.Clone()
	}
	for k, v := range s.folders {
		snap.folders[k] = v.Clone()
	}
	for k, v := range s.files {
		snap.files[k] = v.Clone()
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.folders, s.files = snap.users, snap.folders, snap.files
}

// Conn satisfies dbx.TxRunner. Memory repositories ignore the handle.
func (s *Store) Conn() dbx.DBTX {
	return nil
}

// txHandle marks repositories vended inside WithTx. Memory repositories
// never run SQL through it.
type txHandle struct {
	dbx.DBTX
}

// WithTx serializes transactions and rolls the whole store back when fn
// fails. Writes through Conn() wait for a running transaction, so a
// rollback never discards them.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, &txHandle{}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// lockWrite takes the write lock for a repository bound to tx and returns
// its release. Writes outside a transaction also hold txMu.
func (s *Store) lockWrite(tx dbx.DBTX) func() {
	if _, ok := tx.(*txHandle); ok {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Manager vends repositories over one Store.
type Manager struct {
	store *Store
}

var _ repomanager.RepositoryManager = (*Manager)(nil)

func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(tx dbx.DBTX) users.Repository {
	return &UsersRepository{s: m.store, tx: tx}
}

func (m *Manager) Folders(tx dbx.DBTX) folders.Repository {
	return &FoldersRepository{s: m.store, tx: tx}
}

func (m *Manager) Files(tx dbx.DBTX) files.Repository {
	return &FilesRepository{s: m.store, tx: tx}
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func sortFolders(list []*models.Folder) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

func sortFiles(list []*models.File) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].FileName != list[j].FileName {
			return list[i].FileName < list[j].FileName
		}
		return list[i].ID < list[j].ID
	})
}
