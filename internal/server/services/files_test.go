package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveReq(owner, name, key, hash string, folder *string) SaveRequest {
	return SaveRequest{
		FileName:  name,
		FileType:  "text/plain",
		ObjectKey: objectKey(owner, key),
		Size:      42,
		Hash:      hash,
		FolderID:  folder,
	}
}

func TestUploadSignature_UsesOwnerNamespace(t *testing.T) {
	e := newEnv(t)
	sig, err := e.files.UploadSignature(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "cloudra/o1/obj", sig.ObjectKey)
}

func TestSaveMetadata_Outcomes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.files.now = ticker(start)

	created, err := e.files.SaveMetadata(ctx, "o1", saveReq("o1", "a.txt", "k1", "h1", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, created.Outcome)
	assert.Empty(t, created.File.Versions)

	dup, err := e.files.SaveMetadata(ctx, "o1", saveReq("o1", "a.txt", "k-other", "h1", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, dup.Outcome)
	assert.Equal(t, created.File.ID, dup.File.ID)
	assert.Equal(t, objectKey("o1", "k1"), dup.File.Object.Key)

	next, err := e.files.SaveMetadata(ctx, "o1", saveReq("o1", "a.txt", "k2", "h2", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNewVersion, next.Outcome)
	assert.Equal(t, created.File.ID, next.File.ID)
	assert.Equal(t, objectKey("o1", "k2"), next.File.Object.Key)
	assert.Equal(t, "h2", next.File.Hash)
	require.Len(t, next.File.Versions, 1)
	assert.Equal(t, objectKey("o1", "k1"), next.File.Versions[0].Object.Key)
	assert.Equal(t, created.File.UpdatedAt, next.File.Versions[0].CreatedAt)

	stored, err := e.files.Get(ctx, "o1", created.File.ID)
	require.NoError(t, err)
	require.Len(t, stored.Versions, 1)
	assert.Equal(t, objectKey("o1", "k1"), stored.Versions[0].Object.Key)
}

func TestSaveMetadata_SameHashDifferentNameIsNew(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.file(t, "o1", "a.txt", "k1", "h1", nil)

	res, err := e.files.SaveMetadata(ctx, "o1", saveReq("o1", "b.txt", "k2", "h1", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.NotEqual(t, first.ID, res.File.ID)
}

func TestSaveMetadata_SameNameOtherFolderIsNew(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := e.folder(t, "o1", "docs", nil)
	e.file(t, "o1", "a.txt", "k1", "h1", nil)

	res, err := e.files.SaveMetadata(ctx, "o1", saveReq("o1", "a.txt", "k2", "h2", &dir.ID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
}

func TestSaveMetadata_DedupIsPerOwner(t *testing.T) {
	e := newEnv(t)
	e.file(t, "o1", "a.txt", "k1", "h1", nil)

	res, err := e.files.SaveMetadata(context.Background(), "o2", saveReq("o2", "a.txt", "k2", "h1", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
}

func TestSaveMetadata_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	theirs := e.folder(t, "o2", "T", nil)

	tests := []struct {
		name string
		req  SaveRequest
		want error
	}{
		{"missing name", saveReq("o1", "", "k", "h", nil), common.ErrorValidation},
		{"missing type", SaveRequest{FileName: "a", ObjectKey: objectKey("o1", "k")}, common.ErrorValidation},
		{"missing key", SaveRequest{FileName: "a", FileType: "t"}, common.ErrorValidation},
		{"negative size", SaveRequest{FileName: "a", FileType: "t", ObjectKey: objectKey("o1", "k"), Size: -1}, common.ErrorValidation},
		{"foreign key", saveReq("o2", "a", "k", "h", nil), common.ErrorValidation},
		{"key outside namespaces", SaveRequest{FileName: "a", FileType: "t", ObjectKey: "k"}, common.ErrorValidation},
		{"bare namespace", SaveRequest{FileName: "a", FileType: "t", ObjectKey: objectKey("o1", "")}, common.ErrorValidation},
		{"namespace escape", saveReq("o1", "a", "../o2/k", "h", nil), common.ErrorValidation},
		{"unknown folder", saveReq("o1", "a", "k", "h", ptr("nope")), common.ErrorNotFound},
		{"foreign folder", saveReq("o1", "a", "k", "h", &theirs.ID), common.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.files.SaveMetadata(ctx, "o1", tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSaveMetadata_ForeignObjectKeyIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	theirs := e.file(t, "alice", "secret.txt", "secret", "h1", nil)

	_, err := e.files.SaveMetadata(ctx, "mallory", SaveRequest{
		FileName:  "loot.txt",
		FileType:  "text/plain",
		ObjectKey: theirs.Object.Key,
		Size:      1,
	})
	require.ErrorIs(t, err, common.ErrorValidation)

	own, err := e.files.List(ctx, "mallory", nil)
	require.NoError(t, err)
	assert.Empty(t, own)
	assert.Empty(t, e.objects.deleted)
}

func TestSaveMetadata_ObjectURLIsDerivedFromKey(t *testing.T) {
	e := newEnv(t)
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)
	assert.Equal(t, "https://public.test/"+objectKey("o1", "k1"), f.Object.URL)
}

func TestRestoreVersion_SwapsAndRoundTrips(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.files.now = ticker(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)
	e.file(t, "o1", "a.txt", "k2", "h2", nil)

	cur, err := e.files.Get(ctx, "o1", f.ID)
	require.NoError(t, err)
	require.Len(t, cur.Versions, 1)
	v1 := cur.Versions[0]

	restored, err := e.files.RestoreVersion(ctx, "o1", f.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, objectKey("o1", "k1"), restored.Object.Key)
	assert.Equal(t, "h1", restored.Hash)
	require.Len(t, restored.Versions, 1)
	assert.Equal(t, objectKey("o1", "k2"), restored.Versions[0].Object.Key)

	back, err := e.files.RestoreVersion(ctx, "o1", f.ID, restored.Versions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, objectKey("o1", "k2"), back.Object.Key)
	require.Len(t, back.Versions, 1)
	assert.Equal(t, objectKey("o1", "k1"), back.Versions[0].Object.Key)

	stored, err := e.files.Get(ctx, "o1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, objectKey("o1", "k2"), stored.Object.Key)
	require.Len(t, stored.Versions, 1)
	assert.Equal(t, objectKey("o1", "k1"), stored.Versions[0].Object.Key)
}

func TestRestoreVersion_RestoresFileType(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "notes", "k1", "h1", nil)
	req := saveReq("o1", "notes", "k2", "h2", nil)
	req.FileType = "text/markdown"
	next, err := e.files.SaveMetadata(ctx, "o1", req)
	require.NoError(t, err)
	require.Equal(t, OutcomeNewVersion, next.Outcome)
	require.Equal(t, "text/markdown", next.File.FileType)

	restored, err := e.files.RestoreVersion(ctx, "o1", f.ID, next.File.Versions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", restored.FileType)

	stored, err := e.files.Get(ctx, "o1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", stored.FileType)
	require.Len(t, stored.Versions, 1)
	assert.Equal(t, "text/markdown", stored.Versions[0].FileType)
}

func TestRestoreVersion_NotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)

	_, err := e.files.RestoreVersion(ctx, "o1", f.ID, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.files.RestoreVersion(ctx, "o2", f.ID, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFileUpdate_RenameAndMove(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := e.folder(t, "o1", "docs", nil)
	theirs := e.folder(t, "o2", "T", nil)
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)

	got, err := e.files.Update(ctx, "o1", f.ID, FileUpdate{FileName: ptr("b.txt"), Move: true, FolderID: &dir.ID})
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.FileName)
	assert.Equal(t, dir.ID, *got.FolderID)

	_, err = e.files.Update(ctx, "o1", f.ID, FileUpdate{Move: true, FolderID: &theirs.ID})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.files.Update(ctx, "o1", f.ID, FileUpdate{FileName: ptr(" ")})
	assert.ErrorIs(t, err, common.ErrorValidation)

	got, err = e.files.Update(ctx, "o1", f.ID, FileUpdate{Move: true})
	require.NoError(t, err)
	assert.Nil(t, got.FolderID)
	assert.Equal(t, "b.txt", got.FileName)
}

func TestFileDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)
	e.file(t, "o1", "a.txt", "k2", "h2", nil)

	require.ErrorIs(t, e.files.Delete(ctx, "o2", f.ID), common.ErrorNotFound)

	require.NoError(t, e.files.Delete(ctx, "o1", f.ID))
	assert.ElementsMatch(t, []string{objectKey("o1", "k1"), objectKey("o1", "k2")}, e.objects.deleted)
	_, err := e.files.Get(ctx, "o1", f.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFileDelete_LiveObjectFailureAborts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)
	e.objects.failDelete[objectKey("o1", "k1")] = true

	err := e.files.Delete(ctx, "o1", f.ID)
	assert.ErrorIs(t, err, common.ErrorExternalService)
	_, err = e.files.Get(ctx, "o1", f.ID)
	assert.NoError(t, err)
}

func TestFileDelete_VersionObjectFailureIsIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)
	e.file(t, "o1", "a.txt", "k2", "h2", nil)
	e.objects.failDelete[objectKey("o1", "k1")] = true

	require.NoError(t, e.files.Delete(ctx, "o1", f.ID))
	assert.Equal(t, []string{objectKey("o1", "k2")}, e.objects.deleted)
}

func TestDownloadURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)

	url, got, err := e.files.DownloadURL(ctx, "o1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/"+objectKey("o1", "k1"), url)
	assert.Equal(t, f.ID, got.ID)

	e.objects.presignErr = errors.New("down")
	_, _, err = e.files.DownloadURL(ctx, "o1", f.ID)
	assert.Error(t, err)
}

func TestFileToggleFavorite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.file(t, "o1", "a.txt", "k1", "h1", nil)

	got, err := e.files.ToggleFavorite(ctx, "o1", f.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)
	got, err = e.files.ToggleFavorite(ctx, "o1", f.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFavorite)
}

func TestFileList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := e.folder(t, "o1", "docs", nil)
	e.file(t, "o1", "b.txt", "k1", "h1", nil)
	e.file(t, "o1", "a.txt", "k2", "h2", nil)
	e.file(t, "o1", "c.txt", "k3", "h3", &dir.ID)
	e.file(t, "o2", "d.txt", "k4", "h4", nil)

	root, err := e.files.List(ctx, "o1", nil)
	require.NoError(t, err)
	names := []string{}
	for _, f := range root {
		names = append(names, f.FileName)
	}
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)

	inDir, err := e.files.List(ctx, "o1", &dir.ID)
	require.NoError(t, err)
	require.Len(t, inDir, 1)
	assert.Equal(t, "c.txt", inDir[0].FileName)
}
