package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/logging"
	"github.com/dmitrijs2005/cloudra/internal/server/archive"
	"github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/dmitrijs2005/cloudra/internal/server/metrics"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/memory"
	"github.com/stretchr/testify/require"
)

// fakeObjects records deletions and fails for keys listed in failDelete.
type fakeObjects struct {
	mu         sync.Mutex
	deleted    []string
	failDelete map[string]bool
	presignErr error
}

func (f *fakeObjects) IssueUploadSignature(ctx context.Context, namespace string) (*models.UploadSignature, error) {
	key := namespace + "/obj"
	return &models.UploadSignature{
		ObjectKey: key,
		UploadURL: "https://store.test/" + key + "?sig",
		Method:    "PUT",
		PublicURL: "https://public.test/" + key,
	}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[key] {
		return fmt.Errorf("%w: boom", common.ErrorExternalService)
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjects) PresignGet(ctx context.Context, key string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://signed.test/" + key, nil
}

func (f *fakeObjects) PublicURL(key string) string {
	return "https://public.test/" + key
}

// objectKey places name inside the upload namespace of owner.
func objectKey(owner, name string) string {
	return common.UploadNamespace(owner) + "/" + name
}

type fakeArchive struct {
	entries []archive.Entry
	written int
}

func (f *fakeArchive) Write(ctx context.Context, out io.Writer, entries []archive.Entry) (int, error) {
	f.entries = entries
	_, err := io.WriteString(out, "zip")
	return f.written, err
}

type env struct {
	store   *memory.Store
	objects *fakeObjects
	archive *fakeArchive
	deps    Deps
	cfg     *config.Config
	folders *FolderService
	files   *FileService
	users   *UserService
	share   *ShareService
	mailer  *captureMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	objects := &fakeObjects{failDelete: map[string]bool{}}
	arch := &fakeArchive{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	d := Deps{
		Tx:      store,
		Repos:   memory.NewManager(store),
		Objects: objects,
		Logger:  logging.NewNopLogger(),
		Metrics: metrics.NewCollector(),
	}
	mailer := &captureMailer{}
	return &env{
		store:   store,
		objects: objects,
		archive: arch,
		deps:    d,
		cfg:     cfg,
		folders: NewFolderService(d),
		files:   NewFileService(d, arch),
		users:   NewUserService(d, cfg, mailer),
		share:   NewShareService(d, cfg),
		mailer:  mailer,
	}
}

func (e *env) folder(t *testing.T, owner, name string, parent *string) *models.Folder {
	t.Helper()
	f, err := e.folders.Create(context.Background(), owner, name, parent)
	require.NoError(t, err)
	return f
}

func (e *env) file(t *testing.T, owner, name, key, hash string, folder *string) *models.File {
	t.Helper()
	res, err := e.files.SaveMetadata(context.Background(), owner, SaveRequest{
		FileName:  name,
		FileType:  "text/plain",
		ObjectKey: objectKey(owner, key),
		Size:      10,
		Hash:      hash,
		FolderID:  folder,
	})
	require.NoError(t, err)
	return res.File
}

// activeUser registers and activates a user directly in the store.
func (e *env) activeUser(t *testing.T, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID:        "u-" + email,
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.deps.Repos.Users(nil).Create(context.Background(), u))
	return u
}

// ticker makes the service clock advance by a second on every call.
func ticker(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func ptr[T any](v T) *T { return &v }
