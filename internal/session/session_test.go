package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestApplyHeaders(t *testing.T) {
	s := New()
	s.SetHeader("Authorization", "Bearer tok")
	s.SetHeaders(map[string]string{"X-Custom": "1", "Authorization": "Bearer other"})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	s.Apply(req)

	assert.Equal(t, "Bearer other", req.Header.Get("Authorization"))
	assert.Equal(t, "1", req.Header.Get("X-Custom"))
}

func TestProxyRotation(t *testing.T) {
	s := New()
	assert.False(t, s.HasProxies())
	assert.Nil(t, s.NextProxy())

	require.NoError(t, s.AddProxy("http://proxy1:8080"))
	require.NoError(t, s.AddProxy("http://proxy2:8080"))
	require.True(t, s.HasProxies())

	assert.Equal(t, "http://proxy1:8080", s.NextProxy().String())
	assert.Equal(t, "http://proxy2:8080", s.NextProxy().String())
	assert.Equal(t, "http://proxy1:8080", s.NextProxy().String(), "rotation wraps around")
}

func TestCookiesPersistAcrossRequests(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil {
			gotCookie = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc123"})
	}))
	defer srv.Close()

	s := New()
	client := &http.Client{Jar: s.CookieJar()}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, gotCookie, "no cookie on the first request")

	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc123", gotCookie, "cookie from the first response is replayed")
}
