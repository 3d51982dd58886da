package campuscms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/campuscms/homecontent"
)

const (
	testUser     = "admin"
	testPassword = "correct-horse"
)

type testSite struct {
	app    *App
	srv    *httptest.Server
	client *http.Client
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	dir := t.TempDir()
	app := New(SiteConfig{
		Name:          "Hillside Academy",
		DatabasePath:  filepath.Join(dir, "campus.db"),
		StaticDir:     filepath.Join(dir, "public"),
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
		Env:           "test",
	}, ViewFuncs{})
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { app.Close() })

	srv := httptest.NewServer(app.Echo)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testSite{app: app, srv: srv, client: client}
}

func (s *testSite) get(t *testing.T, path string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// csrf returns the CSRF token cookie set by an earlier GET.
func (s *testSite) csrf(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(s.srv.URL)
	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == "_csrf" {
			return c.Value
		}
	}
	t.Fatal("no _csrf cookie")
	return ""
}

func (s *testSite) postForm(t *testing.T, path string, values url.Values) *http.Response {
	t.Helper()
	values.Set("_csrf", s.csrf(t))
	resp, err := s.client.PostForm(s.srv.URL+path, values)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type upload struct {
	field, name string
	data        []byte
}

func (s *testSite) postMultipart(t *testing.T, path string, values map[string]string, files []upload, header ...string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("_csrf", s.csrf(t)))
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testSite) login(t *testing.T) {
	t.Helper()
	resp := s.get(t, "/admin/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.postForm(t, "/admin/login/", url.Values{"username": {testUser}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/admin/home/edit/", resp.Header.Get("Location"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPublicHomeRendersDefaults(t *testing.T) {
	s := newTestSite(t)
	resp := s.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Welcome to Our School")
	assert.Contains(t, body, "Hillside Academy")
}

func TestUnknownPageIsNotFound(t *testing.T) {
	s := newTestSite(t)
	resp := s.get(t, "/nope/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Page not found")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestSite(t)
	s.get(t, "/admin/")
	resp := s.postForm(t, "/admin/login/", url.Values{"username": {testUser}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Invalid username or password.")
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestSite(t)
	s.get(t, "/admin/")
	for i := 0; i < 5; i++ {
		s.postForm(t, "/admin/login/", url.Values{"username": {testUser}, "password": {"nope"}})
	}
	resp := s.postForm(t, "/admin/login/", url.Values{"username": {testUser}, "password": {testPassword}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestEditorRequiresLogin(t *testing.T) {
	s := newTestSite(t)
	resp := s.get(t, "/admin/home/edit/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/", resp.Header.Get("Location"))

	resp = s.get(t, "/admin/home/edit/", "Accept", "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateWithoutCSRFIsForbidden(t *testing.T) {
	s := newTestSite(t)
	s.login(t)
	resp, err := s.client.PostForm(s.srv.URL+"/admin/home/update/", url.Values{"welcomeTitle": {"x"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEditorShowsForm(t *testing.T) {
	s := newTestSite(t)
	s.login(t)
	resp := s.get(t, "/admin/home/edit/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `name="welcomeTitle"`)
	assert.Contains(t, body, `name="bannerSlides[0][title]"`)
	assert.Contains(t, body, `name="infrastructure[items][0][image]"`)
	assert.Contains(t, body, `name="_version" value="0"`)
	assert.Contains(t, body, "Signed in as admin")
}

func TestUpdateSavesAndServesUpload(t *testing.T) {
	s := newTestSite(t)
	s.login(t)

	resp := s.postMultipart(t, "/admin/home/update/", map[string]string{
		"_version":                                        "0",
		"welcomeTitle":                                    "Welcome to Hillside",
		"welcomeContent":                                  "First paragraph.\n\nSecond paragraph.",
		"ourSociety[title]":                               "Our Society",
		"ourSociety[content]":                             "Clubs and houses.",
		"ourSociety[isActive]":                            "on",
		"recentAnnouncements[title]":                      "News",
		"recentAnnouncements[isActive]":                   "on",
		"recentAnnouncements[announcements][0][title]":    "Term starts",
		"recentAnnouncements[announcements][0][date]":     "2026-09-01",
		"recentAnnouncements[announcements][0][isActive]": "on",
	}, []upload{{field: "ourSociety[image]", name: "society.png", data: pngBytes(t, 10, 10)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/home/edit/?msg=saved", resp.Header.Get("Location"))

	resp = s.get(t, "/api/home/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got homecontent.Aggregate
	decodeJSON(t, resp, &got)
	assert.Equal(t, "Welcome to Hillside", got.WelcomeTitle)
	assert.EqualValues(t, 1, got.Version)
	assert.Empty(t, got.UpdatedBy, "public view hides the editor")

	society := got.Section("ourSociety")
	assert.Equal(t, "Clubs and houses.", society.Field("content"))
	img := society.Asset("image")
	require.True(t, strings.HasPrefix(img, "/uploads/sections/"), img)

	news := got.Section("recentAnnouncements")
	require.Len(t, news.Items, 1)
	assert.Equal(t, "Term starts", news.Items[0].Field("title"))

	resp = s.get(t, img)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")

	resp = s.get(t, "/")
	body := readBody(t, resp)
	assert.Contains(t, body, "Second paragraph.")
	assert.Contains(t, body, img)

	resp = s.get(t, "/admin/home/edit/?msg=saved")
	assert.Contains(t, readBody(t, resp), "Home page saved.")
}

func TestUpdateValidationErrorKeepsValues(t *testing.T) {
	s := newTestSite(t)
	s.login(t)

	resp := s.postMultipart(t, "/admin/home/update/", map[string]string{
		"welcomeTitle":                       "  ",
		"welcomeContent":                     "Draft text that must survive",
		"ourSociety[title]":                  "Typed society title",
		"infrastructure[title]":              "Campus",
		"infrastructure[items][0][title]":    "Typed lab title",
		"infrastructure[items][0][isActive]": "on",
		"infrastructure[items][0][_remove]":  "0",
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Draft text that must survive")
	assert.Contains(t, body, "Please fix the highlighted fields.")
	assert.Contains(t, body, `value="Typed society title"`)
	assert.Contains(t, body, `value="Typed lab title"`)
	assert.Contains(t, body, `name="infrastructure[items][0][_remove]" value="0" checked`)

	resp = s.postMultipart(t, "/admin/home/update/", map[string]string{
		"welcomeTitle":   "",
		"welcomeContent": "Draft",
	}, nil, "Accept", "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
		Values map[string]string `json:"values"`
	}
	decodeJSON(t, resp, &out)
	assert.Contains(t, out.Fields, "welcomeTitle")
	assert.Equal(t, "Draft", out.Values["welcomeContent"])
}

func TestUpdateRejectsWrongFileType(t *testing.T) {
	s := newTestSite(t)
	s.login(t)
	resp := s.postMultipart(t, "/admin/home/update/", map[string]string{
		"welcomeTitle":      "Welcome",
		"ourSociety[title]": "Society",
	}, []upload{{field: "ourSociety[image]", name: "evil.svg", data: []byte("<svg/>")}},
		"Accept", "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	entries, _ := os.ReadDir(filepath.Join(s.app.Config.StaticDir, "uploads", "sections"))
	assert.Empty(t, entries)
}

func TestUpdateStaleFormConflicts(t *testing.T) {
	s := newTestSite(t)
	s.login(t)

	resp := s.postMultipart(t, "/admin/home/update/", map[string]string{
		"_version":     "0",
		"welcomeTitle": "First",
	}, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// Same form again: the stored version has moved on.
	resp = s.postMultipart(t, "/admin/home/update/", map[string]string{
		"_version":     "0",
		"welcomeTitle": "Second",
	}, nil, "Accept", "application/json")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	content, err := s.app.Engine.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "First", content.WelcomeTitle)
}

func TestUpdateAcceptsURLEncodedForm(t *testing.T) {
	s := newTestSite(t)
	s.login(t)
	resp := s.postForm(t, "/admin/home/update/", url.Values{
		"welcomeTitle": {"Plain form"},
		"history":      {"Founded in 1950."},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	content, err := s.app.Engine.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Plain form", content.WelcomeTitle)
	assert.Equal(t, "Founded in 1950.", content.History)
}

func TestResetRestoresDefaults(t *testing.T) {
	s := newTestSite(t)
	s.login(t)
	resp := s.postForm(t, "/admin/home/update/", url.Values{"welcomeTitle": {"Changed"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = s.postForm(t, "/admin/home/reset/", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/home/edit/?msg=reset", resp.Header.Get("Location"))

	resp = s.get(t, "/")
	assert.Contains(t, readBody(t, resp), "Welcome to Our School")
}

func TestLogoutEndsSession(t *testing.T) {
	s := newTestSite(t)
	s.login(t)
	resp := s.postForm(t, "/admin/logout/", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = s.get(t, "/admin/home/edit/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}
