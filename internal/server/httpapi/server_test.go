package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/logging"
	"github.com/dmitrijs2005/cloudra/internal/server/archive"
	"github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/dmitrijs2005/cloudra/internal/server/mail"
	"github.com/dmitrijs2005/cloudra/internal/server/metrics"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
	"github.com/dmitrijs2005/cloudra/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cloudra/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubObjects struct{}

func (stubObjects) IssueUploadSignature(ctx context.Context, namespace string) (*models.UploadSignature, error) {
	return &models.UploadSignature{ObjectKey: namespace + "/new", UploadURL: "https://store.test/put", Method: http.MethodPut}, nil
}

func (stubObjects) DeleteObject(ctx context.Context, key string) error { return nil }

func (stubObjects) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://signed.test/" + key, nil
}

func (stubObjects) PublicURL(key string) string { return "https://public.test/" + key }

type stubArchive struct{}

func (stubArchive) Write(ctx context.Context, out io.Writer, entries []archive.Entry) (int, error) {
	_, err := io.WriteString(out, "PK")
	return len(entries), err
}

type tokenMailer struct {
	last string
}

func (m *tokenMailer) Send(ctx context.Context, msg mail.Message) error {
	link := strings.Fields(msg.Body)[1]
	m.last = link[strings.LastIndex(link, "/")+1:]
	return nil
}

type testAPI struct {
	handler http.Handler
	mailer  *tokenMailer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	m := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m))

	d := services.Deps{
		Tx:      store,
		Repos:   memory.NewManager(store),
		Objects: stubObjects{},
		Logger:  logging.NewNopLogger(),
		Metrics: m,
	}
	mailer := &tokenMailer{}
	svc := Services{
		Users:   services.NewUserService(d, cfg, mailer),
		Folders: services.NewFolderService(d),
		Files:   services.NewFileService(d, stubArchive{}),
		Share:   services.NewShareService(d, cfg),
	}
	srv := NewServer(":0", logging.NewNopLogger(), svc, m, reg)
	return &testAPI{handler: srv.Handler(), mailer: mailer}
}

type apiResponse struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	Error        string          `json:"error"`
	IsDuplicate  bool            `json:"isDuplicate"`
	IsNewVersion bool            `json:"isNewVersion"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// signup registers, activates and logs in a user and returns its token.
func (a *testAPI) signup(t *testing.T, email string) string {
	t.Helper()
	w, _ := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": "Ann", "lastName": "Lee", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = a.do(t, http.MethodPut, "/api/auth/activate/"+a.mailer.last, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(t, "ann@x.io")

	w, resp := api.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, resp.Data)
	assert.Equal(t, "ann@x.io", me.Email)
	assert.NotContains(t, string(resp.Data), "password")

	w, _ = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@x.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(t, http.MethodPut, "/api/auth/activate/bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"firstName": "Ann", "lastName": "Lee", "email": "ANN@x.io", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, resp.Success)
}

func TestPasswordReset(t *testing.T) {
	api := newTestAPI(t)
	api.signup(t, "ann@x.io")

	w, _ := api.do(t, http.MethodPost, "/api/auth/forgotpassword", "", map[string]string{"email": "ann@x.io"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodPut, "/api/auth/resetpassword/"+api.mailer.last, "", map[string]string{"password": "another1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@x.io", "password": "another1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodGet, "/api/files", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)

	w, _ = api.do(t, http.MethodGet, "/api/folders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFolderRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(t, "ann@x.io")

	w, resp := api.do(t, http.MethodPost, "/api/folders", token, map[string]any{"name": "A"})
	require.Equal(t, http.StatusCreated, w.Code)
	a := decode[models.Folder](t, resp.Data)

	w, resp = api.do(t, http.MethodPost, "/api/folders", token, map[string]any{"name": "B", "parentId": a.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[models.Folder](t, resp.Data)
	assert.Equal(t, models.Path{{ID: a.ID, Name: "A"}}, b.Path)

	// Renaming without parentId keeps the folder where it is.
	w, resp = api.do(t, http.MethodPatch, "/api/folders/"+b.ID, token, map[string]any{"name": "B2"})
	require.Equal(t, http.StatusOK, w.Code)
	b = decode[models.Folder](t, resp.Data)
	assert.Equal(t, "B2", b.Name)
	require.NotNil(t, b.ParentID)

	// An explicit null moves it to the root.
	w, resp = api.do(t, http.MethodPatch, "/api/folders/"+b.ID, token, map[string]any{"parentId": nil})
	require.Equal(t, http.StatusOK, w.Code)
	b = decode[models.Folder](t, resp.Data)
	assert.Nil(t, b.ParentID)
	assert.Empty(t, b.Path)

	w, resp = api.do(t, http.MethodGet, "/api/folders", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Folder](t, resp.Data), 2)

	w, _ = api.do(t, http.MethodPatch, "/api/folders/"+a.ID+"/favorite", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodDelete, "/api/folders/"+a.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, http.MethodGet, "/api/folders/"+a.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	other := api.signup(t, "bob@x.io")
	w, _ = api.do(t, http.MethodGet, "/api/folders/"+b.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func saveBody(name, key, hash string) map[string]any {
	return map[string]any{
		"fileName":  name,
		"fileType":  "text/plain",
		"fileSize":  3,
		"objectKey": key,
		"fileHash":  hash,
	}
}

// namespace asks for an upload URL and returns the key prefix the caller
// may save objects under.
func (a *testAPI) namespace(t *testing.T, token string) string {
	t.Helper()
	w, resp := a.do(t, http.MethodPost, "/api/files/upload-url", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sig := decode[models.UploadSignature](t, resp.Data)
	return strings.TrimSuffix(sig.ObjectKey, "/new") + "/"
}

func TestFileRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(t, "ann@x.io")

	ns := api.namespace(t, token)
	assert.True(t, strings.HasPrefix(ns, "cloudra/"))

	w, resp := api.do(t, http.MethodPost, "/api/files", token, saveBody("a.txt", ns+"k1", "h1"))
	require.Equal(t, http.StatusCreated, w.Code)
	f := decode[models.File](t, resp.Data)

	w, resp = api.do(t, http.MethodPost, "/api/files", token, saveBody("a.txt", ns+"k9", "h1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.IsDuplicate)

	w, resp = api.do(t, http.MethodPost, "/api/files", token, saveBody("a.txt", ns+"k2", "h2"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.IsNewVersion)
	f = decode[models.File](t, resp.Data)
	require.Len(t, f.Versions, 1)

	w, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/files/%s/versions/%s/restore", f.ID, f.Versions[0].ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ns+"k1", decode[models.File](t, resp.Data).Object.Key)

	w, resp = api.do(t, http.MethodGet, "/api/files/"+f.ID+"/download", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dl := decode[downloadResponse](t, resp.Data)
	assert.Equal(t, "https://signed.test/"+ns+"k1", dl.URL)
	assert.Equal(t, "https://public.test/"+ns+"k1", dl.File.Object.URL)

	w, _ = api.do(t, http.MethodPost, "/api/files", token, map[string]any{"fileName": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = api.do(t, http.MethodPatch, "/api/files/"+f.ID, token, map[string]any{"fileName": "b.txt"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b.txt", decode[models.File](t, resp.Data).FileName)

	w, _ = api.do(t, http.MethodDelete, "/api/files/"+f.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, http.MethodGet, "/api/files/"+f.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveFile_RejectsForeignObjectKey(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signup(t, "ann@x.io")
	other := api.signup(t, "bob@x.io")
	ns := api.namespace(t, owner)

	w, resp := api.do(t, http.MethodPost, "/api/files", other, saveBody("a.txt", ns+"k1", "h1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)

	w, _ = api.do(t, http.MethodPost, "/api/files", owner, saveBody("a.txt", ns+"k1", "h1"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBulkRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(t, "ann@x.io")

	w, resp := api.do(t, http.MethodPost, "/api/folders", token, map[string]any{"name": "Dest"})
	require.Equal(t, http.StatusCreated, w.Code)
	dest := decode[models.Folder](t, resp.Data)
	ns := api.namespace(t, token)

	_, resp = api.do(t, http.MethodPost, "/api/files", token, saveBody("a.txt", ns+"k1", "h1"))
	a := decode[models.File](t, resp.Data)
	_, resp = api.do(t, http.MethodPost, "/api/files", token, saveBody("b.txt", ns+"k2", "h2"))
	b := decode[models.File](t, resp.Data)

	w, resp = api.do(t, http.MethodPost, "/api/files/bulk/move", token, map[string]any{
		"fileIds": []string{a.ID}, "destinationFolderId": dest.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[services.BulkResult](t, resp.Data).Files)

	w, _ = api.do(t, http.MethodPost, "/api/files/bulk/download", token, map[string]any{"fileIds": []string{}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/files/bulk/download", token, map[string]any{"fileIds": []string{a.ID, b.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cloudra-files.zip")
	assert.Equal(t, "PK", w.Body.String())

	w, resp = api.do(t, http.MethodPost, "/api/files/bulk/delete", token, map[string]any{
		"fileIds": []string{b.ID}, "folderIds": []string{dest.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[services.BulkResult](t, resp.Data)
	assert.Equal(t, int64(1), res.Files)
	assert.Equal(t, int64(1), res.Folders)

	w, _ = api.do(t, http.MethodGet, "/api/files/"+a.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShareRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(t, "ann@x.io")
	friendToken := api.signup(t, "bob@x.io")

	w, resp := api.do(t, http.MethodGet, "/api/users/search?email=BO", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]userSummary](t, resp.Data)
	require.Len(t, found, 1)
	assert.Equal(t, "bob@x.io", found[0].Email)

	w, _ = api.do(t, http.MethodGet, "/api/users/search", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ns := api.namespace(t, token)
	_, resp = api.do(t, http.MethodPost, "/api/files", token, saveBody("a.txt", ns+"k1", "h1"))
	f := decode[models.File](t, resp.Data)

	w, resp = api.do(t, http.MethodPost, "/api/files/"+f.ID+"/share", token, map[string]any{"expiresIn": 1})
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[services.ShareView](t, resp.Data)
	require.NotNil(t, view.Settings.Token)
	shareToken := *view.Settings.Token

	w, _ = api.do(t, http.MethodGet, "/api/share/"+shareToken, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/files/"+f.ID+"/share/user", token, map[string]any{"userId": found[0].ID})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do(t, http.MethodGet, "/api/share/"+shareToken, friendToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	shared := decode[services.SharedResource](t, resp.Data)
	assert.Equal(t, "https://signed.test/"+ns+"k1", shared.DownloadURL)

	w, _ = api.do(t, http.MethodDelete, "/api/files/"+f.ID+"/share/user/"+found[0].ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, http.MethodGet, "/api/share/"+shareToken, friendToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = api.do(t, http.MethodGet, "/api/files/"+f.ID+"/share", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[services.ShareView](t, resp.Data).Link, "/share/"+shareToken)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodGet, "/api/files", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cloudra_http_requests_total{method="GET",route="/api/files",status="401"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", common.ErrorNotFound), http.StatusNotFound},
		{common.ErrorValidation, http.StatusBadRequest},
		{common.ErrorAlreadyExists, http.StatusConflict},
		{common.ErrorUnauthorized, http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrInvalidToken, http.StatusUnauthorized},
		{fmt.Errorf("%w: s3", common.ErrorExternalService), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestOptionalID(t *testing.T) {
	present, id, err := optionalID(nil)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, id)

	present, id, err = optionalID(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.True(t, present)
	assert.Nil(t, id)

	present, id, err = optionalID(json.RawMessage(`""`))
	require.NoError(t, err)
	assert.True(t, present)
	assert.Nil(t, id)

	present, id, err = optionalID(json.RawMessage(`"abc"`))
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "abc", *id)

	_, _, err = optionalID(json.RawMessage(`42`))
	assert.ErrorIs(t, err, common.ErrorValidation)
}
