package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"svgembed/internal/config"
	"svgembed/internal/media/svg"
	"svgembed/internal/models"
	"svgembed/internal/repository"
	"svgembed/internal/resource"
	"svgembed/internal/security"
	"svgembed/internal/service"
	"svgembed/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeImages map[string]models.Image

func (f fakeImages) GetByID(_ context.Context, id string) (models.Image, error) {
	image, ok := f[id]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return image, nil
}

func (f fakeImages) List(_ context.Context, limit, offset int) ([]models.Image, error) {
	var out []models.Image
	for _, image := range f {
		out = append(out, image)
	}
	return out, nil
}

type fakeObjects map[string][]byte

func (f fakeObjects) Get(_ context.Context, bucket, key string) ([]byte, storage.ObjectInfo, error) {
	data, ok := f[bucket+"/"+key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return data, storage.ObjectInfo{Size: int64(len(data))}, nil
}

type stubUploader struct {
	input  service.UploadInput
	result service.UploadResult
	err    error
}

func (s *stubUploader) Upload(_ context.Context, input service.UploadInput) (service.UploadResult, error) {
	s.input = input
	return s.result, s.err
}

type fixture struct {
	engine   *gin.Engine
	cfg      *config.AppConfig
	uploader *stubUploader
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "icons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "icons", "logo.svg"),
		[]byte(`<svg viewBox="0 0 10 10" onclick="x()"><script>x()</script><circle r="5"/></svg>`), 0o644))

	cfg := &config.AppConfig{Environment: "test"}
	cfg.Security.JWTAccessSecret = "jwt"
	cfg.Security.SignatureSecret = "sig"
	cfg.Security.ResourceSecret = "res"
	cfg.Security.SignatureSkew = 5 * time.Minute
	cfg.Storage.BucketOriginals = "orig"
	cfg.Storage.BucketVariants = "variants"

	preview := "img1.svg.preview.png"
	images := fakeImages{
		"img1": {ID: "img1", Filename: `<b>logo</b>.svg`, Bucket: "orig", ObjectKey: "img1.svg", Status: models.ImageStatusReady, PreviewKey: &preview},
		"img2": {ID: "img2", Filename: "broken.svg", Bucket: "orig", ObjectKey: "img2.svg", Status: models.ImageStatusReady},
	}
	objects := fakeObjects{
		"orig/img1.svg":                 []byte(`<svg xmlns="http://www.w3.org/2000/svg"><rect onload="x()" width="1"/></svg>`),
		"orig/img2.svg":                 []byte(`not svg`),
		"variants/img1.svg.preview.png": []byte("PNGDATA"),
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	uploader := &stubUploader{}
	h := HandlerSet{
		log:      zerolog.Nop(),
		cfg:      cfg,
		cache:    client,
		images:   images,
		objects:  objects,
		uploads:  uploader,
		pipeline: svg.NewPipeline(resource.NewResolver(images, objects, root, "orig", "variants"), svg.WithMaxBytes(4096)),
	}

	engine := gin.New()
	h.Register(engine.Group("/api"))
	return fixture{engine: engine, cfg: cfg, uploader: uploader}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, scopes ...string) string {
	t.Helper()
	tok, err := security.GenerateAccessToken("jwt", "client-1", scopes, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func sign(t *testing.T, req *http.Request, body []byte, nonce string) {
	t.Helper()
	date := time.Now().UTC().Format(time.RFC3339)
	sig := security.ComputeSignature("sig", "client-1", req.Method, req.URL.Path, req.URL.RawQuery,
		security.ComputeBodyHash(body), date, nonce)
	req.Header.Set(security.HeaderDate, date)
	req.Header.Set(security.HeaderNonce, nonce)
	req.Header.Set(security.HeaderSignature, sig)
}

func jsonRequest(t *testing.T, path string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "disabled", body["database"])
	require.Equal(t, "ok", body["cache"])
}

func TestRender(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(t, "/api/v1/render", `{"src":"icons/logo.svg","id":"logo","width":24,"data":{"test":1},"additionalAttributes":{"onclick":"x()","role":"img"}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, `<svg viewBox="0 0 10 10" id="logo" width="24" data-test="1" role="img"><circle r="5"/></svg>`, decode(t, rec)["markup"])

	rec = f.do(jsonRequest(t, "/api/v1/render", `{"image":{"content":"<svg><g/></svg>"},"class":"icon"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `<svg class="icon"><g/></svg>`, decode(t, rec)["markup"])

	rec = f.do(jsonRequest(t, "/api/v1/render", `{"image":{"id":"img2"}}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "", decode(t, rec)["markup"])
}

func TestRenderErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(t, "/api/v1/render", `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "must specify src or File", decode(t, rec)["error"])

	rec = f.do(jsonRequest(t, "/api/v1/render", `{"src":"../etc/passwd"}`))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "could not convert arguments to image object", decode(t, rec)["error"])

	rec = f.do(jsonRequest(t, "/api/v1/render", `{"image":{"content":"<svg/>","filename":"a.png"}}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "must provide an svg file", decode(t, rec)["error"])

	rec = f.do(jsonRequest(t, "/api/v1/render", `{"data":[1]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := jsonRequest(t, "/api/v1/render", `{"src":"icons/logo.svg"}`)
	req.Header.Del("Authorization")
	require.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestRenderBatchSharesSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(t, "/api/v1/render/batch", `{"items":[
		{"src":"icons/logo.svg","class":"a"},
		{"src":"icons/logo.svg","class":"a"},
		{"src":"missing.svg"}
	]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Items []struct {
			Markup *string `json:"markup"`
			Error  string  `json:"error"`
		} `json:"items"`
		Cache struct {
			Hits   int64 `json:"hits"`
			Misses int64 `json:"misses"`
		} `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 3)
	require.Equal(t, *body.Items[0].Markup, *body.Items[1].Markup)
	require.Nil(t, body.Items[2].Markup)
	require.Equal(t, "could not convert arguments to image object", body.Items[2].Error)
	require.Equal(t, int64(1), body.Cache.Hits)
	require.Equal(t, int64(1), body.Cache.Misses)
}

func TestInlineMedia(t *testing.T) {
	f := newFixture(t)
	url := service.MediaURL("res", "img1", "inline")

	rec := f.do(httptest.NewRequest(http.MethodGet, url+"&id=logo&data-track=hero&tabindex=0&onload=x()", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "image/svg+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, inlineCSP, rec.Header().Get("Content-Security-Policy"))
	require.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg" id="logo" data-track="hero" tabindex="0"><rect width="1"/></svg>`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/media/img1/inline?sig=forged", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, service.MediaURL("res", "img2", "inline"), nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, service.MediaURL("res", "nope", "inline"), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewAndThumbnail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, service.MediaURL("res", "img1", "preview"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Contains(t, body, `<title>&lt;b&gt;logo&lt;/b&gt;.svg</title>`)
	require.Contains(t, body, `<svg xmlns="http://www.w3.org/2000/svg" class="preview"><rect width="1"/></svg>`)
	require.Contains(t, body, `/api/v1/media/img1/thumbnail?sig=`)
	require.NotContains(t, body, "onload")

	rec = f.do(httptest.NewRequest(http.MethodGet, service.MediaURL("res", "img1", "thumbnail"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "PNGDATA", rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, service.MediaURL("res", "img2", "thumbnail"), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, service.MediaURL("res", "img1", "inline")+"x", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func uploadRequest(t *testing.T, scopes []string, nonce string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "logo.svg")
	require.NoError(t, err)
	_, err = part.Write([]byte("<svg/>"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	body := buf.Bytes()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, scopes...))
	sign(t, req, body, nonce)
	return req
}

func TestUploadMedia(t *testing.T) {
	f := newFixture(t)
	f.uploader.result = service.UploadResult{
		Image:     models.Image{ID: "new1", Filename: "logo.svg", Status: models.ImageStatusProcessing},
		InlineURL: "/api/v1/media/new1/inline?sig=s",
	}

	rec := f.do(uploadRequest(t, []string{security.ScopeMediaWrite}, "n1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "client-1", f.uploader.input.ClientID)
	require.Equal(t, "logo.svg", f.uploader.input.Header.Filename)
	image := decode(t, rec)["image"].(map[string]any)
	require.Equal(t, "new1", image["id"])
	require.Equal(t, "processing", image["status"])

	rec = f.do(uploadRequest(t, []string{security.ScopeMediaWrite}, "n1"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(uploadRequest(t, nil, "n2"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	f.uploader.err = service.ErrUnsupportedType
	rec = f.do(uploadRequest(t, []string{security.ScopeMediaWrite}, "n3"))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	f.uploader.err = errors.New("put object: connection refused")
	rec = f.do(uploadRequest(t, []string{security.ScopeMediaWrite}, "n4"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminListImages(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/images?perPage=10&page=2", nil)
	req.Header.Set("Authorization", bearer(t, security.ScopeAdmin))
	sign(t, req, nil, "a1")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	require.Len(t, body["items"], 2)
	require.Equal(t, float64(10), body["offset"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/images", nil)
	req.Header.Set("Authorization", bearer(t, security.ScopeMediaWrite))
	sign(t, req, nil, "a2")
	require.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestHelpers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/helpers/tel?number=%2B49+(0)+7777+77+77+77", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `<a href="tel:+49777777777">+49 (0) 7777 77 77 77</a>`, decode(t, rec)["markup"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/helpers/tel?number=12345", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/helpers/ip", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec = f.do(req)
	require.Equal(t, "203.0.113.7", decode(t, rec)["ip"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/helpers/stream?streamId=s1&customerId=c1&loop=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `<iframe src="https://customer-c1.cloudflarestream.com/s1/iframe?preload=none&amp;loop=true"></iframe>`, decode(t, rec)["markup"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/helpers/stream?streamId=s1&customerId=c1&muted=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
