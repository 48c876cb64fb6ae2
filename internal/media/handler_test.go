package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/mediaservice/internal/middleware"
	"github.com/radif/mediaservice/internal/response"
	"github.com/radif/mediaservice/internal/storage"
)

const (
	handlerSecret    = "handler-secret"
	deletePermission = "media:delete"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type envelope struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Errors  []response.ErrorDetail `json:"errors"`
}

type testServer struct {
	router http.Handler
	store  *storage.MemoryStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryStorage("http://localhost:9000/media")
	svc := NewService(store, Options{
		AllowedTypes:  []string{"image/png", "image/jpeg", "video/mp4"},
		MaxUploadSize: 1024,
		PresignTTL:    time.Hour,
		DirectURLs:    true,
	}, zerolog.Nop())

	auth := middleware.NewHMACAuthenticator(handlerSecret, zerolog.Nop())
	r := chi.NewRouter()
	r.Mount("/media", NewHandler(svc, zerolog.Nop()).Routes(auth, deletePermission))
	return &testServer{router: r, store: store}
}

func bearer(t *testing.T, sub string, perms ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Permissions: perms,
	})
	s, err := token.SignedString([]byte(handlerSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, metadata string, file *filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if metadata != "" {
		require.NoError(t, mw.WriteField("metadata", metadata))
	}
	if file != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.name))
		hdr.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) do(t *testing.T, req *http.Request, auth string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *testServer) upload(t *testing.T, metadata string, file *filePart) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	body, ct := multipartBody(t, metadata, file)
	req := httptest.NewRequest(http.MethodPost, "/media/upload", body)
	req.Header.Set("Content-Type", ct)
	return s.do(t, req, bearer(t, "user-42"))
}

func (s *testServer) mustUpload(t *testing.T, name string) UploadResult {
	t.Helper()
	rec, env := s.upload(t, "", &filePart{name: name, contentType: "image/png", data: pngHeader})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res UploadResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestHandler_Upload(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.upload(t, `{"album":"summer"}`, &filePart{name: "photo.png", contentType: "image/png", data: pngHeader})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, response.StatusSuccess, env.Status)

	var res UploadResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Regexp(t, `^images/\d+-[0-9a-f-]{36}-photo\.png$`, res.Key)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, int64(len(pngHeader)), res.Size)
	assert.NotEmpty(t, res.RetrievalURL)
	assert.NotEmpty(t, res.RequestID)

	info, err := s.store.Stat(t.Context(), res.Key)
	require.NoError(t, err)
	assert.Equal(t, "summer", info.Metadata["X-Amz-Meta-Album"])
	assert.Equal(t, "user-42", info.Metadata["X-Amz-Meta-Uploaded-By"])
}

func TestHandler_UploadMetadataHeader(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartBody(t, "", &filePart{name: "photo.png", contentType: "image/png", data: pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/media/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(MetadataHeader, `{"camera":"x100"}`)
	rec, env := s.do(t, req, bearer(t, "user-42"))
	require.Equal(t, http.StatusOK, rec.Code)

	var res UploadResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	info, err := s.store.Stat(t.Context(), res.Key)
	require.NoError(t, err)
	assert.Equal(t, "x100", info.Metadata["X-Amz-Meta-Camera"])
}

func TestHandler_UploadSniffsUntypedPart(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.upload(t, "", &filePart{name: "blob", contentType: "application/octet-stream", data: pngHeader})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res UploadResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "image/png", res.ContentType)
	assert.True(t, strings.HasPrefix(res.Key, "images/"))
}

func TestHandler_UploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		file     *filePart
		reason   string
	}{
		{
			name:   "disallowed type",
			file:   &filePart{name: "setup.exe", contentType: "application/x-msdownload", data: []byte("MZ")},
			reason: "type_not_allowed",
		},
		{
			name:     "no file part",
			metadata: `{"album":"summer"}`,
			reason:   "no_file",
		},
		{
			name:   "too large",
			file:   &filePart{name: "big.png", contentType: "image/png", data: bytes.Repeat([]byte{1}, 2048)},
			reason: "too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec, env := s.upload(t, tt.metadata, tt.file)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, response.StatusError, env.Status)
			require.Len(t, env.Errors, 1)
			assert.Equal(t, "validation", env.Errors[0].Kind)
			assert.Equal(t, tt.reason, env.Errors[0].Reason)
			assert.Equal(t, 0, s.store.Len())
		})
	}
}

func TestHandler_UploadDisallowedTypeListsAllowed(t *testing.T) {
	s := newTestServer(t)

	_, env := s.upload(t, "", &filePart{name: "page.html", contentType: "text/html", data: []byte("<html>")})
	assert.Contains(t, env.Message, "image/png, image/jpeg, video/mp4")
}

func TestHandler_UploadNotMultipart(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/media/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, env := s.do(t, req, bearer(t, "user-42"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Errors[0].Reason)
}

func TestHandler_Unauthenticated(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/media/upload"},
		{http.MethodPost, "/media/presigned-upload"},
		{http.MethodGet, "/media/presigned-url/images/a.png"},
		{http.MethodGet, "/media/metadata/images/a.png"},
		{http.MethodGet, "/media/list"},
		{http.MethodDelete, "/media/images/a.png"},
	} {
		rec, env := s.do(t, httptest.NewRequest(tc.method, tc.path, nil), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "missing", env.Errors[0].Reason, tc.path)
	}

	rec, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/media/list", nil), "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_PresignedURL(t *testing.T) {
	s := newTestServer(t)
	up := s.mustUpload(t, "photo.png")

	rec, env := s.do(t, httptest.NewRequest(http.MethodGet, "/media/presigned-url/"+up.Key, nil), bearer(t, "u"))
	require.Equal(t, http.StatusOK, rec.Code)
	var res RetrievalURL
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, up.Key, res.Key)
	assert.Equal(t, 3600, res.ExpiresIn)
	assert.NotEmpty(t, res.RetrievalURL)

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/media/presigned-url/unknown-key", nil), bearer(t, "u"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Errors[0].Kind)
}

func TestHandler_Metadata(t *testing.T) {
	s := newTestServer(t)
	up := s.mustUpload(t, "photo.png")

	rec, env := s.do(t, httptest.NewRequest(http.MethodGet, "/media/metadata/"+up.Key, nil), bearer(t, "u"))
	require.Equal(t, http.StatusOK, rec.Code)
	var meta Metadata
	require.NoError(t, json.Unmarshal(env.Data, &meta))
	assert.Equal(t, up.Key, meta.Key)
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, "photo.png", meta.CustomMetadata["original-name"])
	assert.Equal(t, "user-42", meta.CustomMetadata["uploaded-by"])

	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/media/metadata/images/missing.png", nil), bearer(t, "u"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_KeyRoundTrip(t *testing.T) {
	s := newTestServer(t)
	reader := bearer(t, "u")
	admin := bearer(t, "admin", deletePermission)

	for _, name := range []string{"100%.png", "50%20off.png", "a+b.png", "sommer ferien.png"} {
		t.Run(name, func(t *testing.T) {
			up := s.mustUpload(t, name)
			escaped := (&url.URL{Path: up.Key}).EscapedPath()

			// Clients escaping the slash send a raw path that chi routes on.
			for _, target := range []string{escaped, strings.ReplaceAll(escaped, "/", "%2F")} {
				rec, env := s.do(t, httptest.NewRequest(http.MethodGet, "/media/metadata/"+target, nil), reader)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var meta Metadata
				require.NoError(t, json.Unmarshal(env.Data, &meta))
				assert.Equal(t, up.Key, meta.Key)

				rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/media/presigned-url/"+target, nil), reader)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var res RetrievalURL
				require.NoError(t, json.Unmarshal(env.Data, &res))
				assert.Equal(t, up.Key, res.Key)
			}

			rec, env := s.do(t, httptest.NewRequest(http.MethodDelete, "/media/"+escaped, nil), admin)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var data deleteData
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, up.Key, data.Key)

			_, err := s.store.Stat(t.Context(), up.Key)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestHandler_List(t *testing.T) {
	s := newTestServer(t)
	s.mustUpload(t, "a.png")
	s.mustUpload(t, "b.png")
	_, err := s.store.Put(t.Context(), "images/", strings.NewReader(""), 0, storage.PutOptions{})
	require.NoError(t, err)

	rec, env := s.do(t, httptest.NewRequest(http.MethodGet, "/media/list?prefix=images/&recursive=true", nil), bearer(t, "u"))
	require.Equal(t, http.StatusOK, rec.Code)
	var page ListPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Count)
	for _, it := range page.Items {
		assert.True(t, strings.HasPrefix(it.Name, "images/"))
		assert.NotEqual(t, "images/", it.Name)
	}

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/media/list?recursive=true&limit=1", nil), bearer(t, "u"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, page.Items[0].Name, page.NextCursor)

	for _, q := range []string{"limit=abc", "limit=0", "limit=1001", "recursive=maybe"} {
		rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/media/list?"+q, nil), bearer(t, "u"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandler_Delete(t *testing.T) {
	s := newTestServer(t)
	up := s.mustUpload(t, "photo.png")

	rec, env := s.do(t, httptest.NewRequest(http.MethodDelete, "/media/"+up.Key, nil), bearer(t, "reader"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Errors[0].Reason)
	assert.Equal(t, 1, s.store.Len())

	admin := bearer(t, "admin", deletePermission)
	rec, env = s.do(t, httptest.NewRequest(http.MethodDelete, "/media/"+up.Key, nil), admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var data deleteData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, up.Key, data.Key)
	assert.Equal(t, 0, s.store.Len())

	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/media/metadata/"+up.Key, nil), admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/media/"+up.Key, nil), admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DeleteWithoutConfiguredPermission(t *testing.T) {
	store := storage.NewMemoryStorage("http://x")
	svc := NewService(store, Options{AllowedTypes: []string{"image/png"}, MaxUploadSize: 1024, PresignTTL: time.Minute}, zerolog.Nop())
	_, err := store.Put(t.Context(), "images/a.png", strings.NewReader("x"), 1, storage.PutOptions{})
	require.NoError(t, err)

	auth := middleware.NewHMACAuthenticator(handlerSecret, zerolog.Nop())
	r := chi.NewRouter()
	r.Mount("/media", NewHandler(svc, zerolog.Nop()).Routes(auth, ""))

	req := httptest.NewRequest(http.MethodDelete, "/media/images/a.png", nil)
	req.Header.Set("Authorization", bearer(t, "admin", deletePermission))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, store.Len())
}

func TestHandler_PresignUpload(t *testing.T) {
	s := newTestServer(t)

	post := func(body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(http.MethodPost, "/media/presigned-upload", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(t, req, bearer(t, "u"))
	}

	rec, env := post(`{"fileName":"clip.mp4","fileType":"video/mp4","metadata":{"a":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res PresignUploadResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Regexp(t, `^videos/\d+-[0-9a-f-]{36}\.mp4$`, res.Key)
	assert.Equal(t, "videos", res.Category)
	assert.Contains(t, res.WriteURL, res.Key)
	assert.Equal(t, 0, s.store.Len())

	rec, env = post(`{"fileName":"clip.mp4"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Errors[0].Reason)
	assert.Contains(t, env.Message, "fileType is required")

	rec, env = post(`{"fileName":"run.sh","fileType":"application/x-sh"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type_not_allowed", env.Errors[0].Reason)

	rec, _ = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
