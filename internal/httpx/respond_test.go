package httpx

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	require.Equal(t, "x", dst.Name)

	for _, body := range []string{`{"name":"x","extra":1}`, `{"name":`, `{"name":"x"}{"name":"y"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(httptest.NewRecorder(), req, &dst)
		require.True(t, errors.Is(err, ErrInvalidBody), body)
	}
}

func TestWriteValidation(t *testing.T) {
	verr := &ValidationError{}
	require.NoError(t, verr.Err())

	verr.Add("email", "invalid email")
	verr.Add("email", "ignored")
	require.Error(t, verr.Err())

	rec := httptest.NewRecorder()
	WriteValidation(rec, verr)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.JSONEq(t, `{"error":"validation failed","fields":{"email":"invalid email"}}`, rec.Body.String())
}

func TestIsForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	require.True(t, IsForm(req))

	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	require.True(t, IsForm(req))

	req.Header.Set("Content-Type", "application/json")
	require.False(t, IsForm(req))
}

func TestParseForm_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("username", "anna@example.com"))
	require.NoError(t, mw.WriteField("password", "password123"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, ParseForm(req))
	require.Equal(t, "anna@example.com", req.PostForm.Get("username"))
	require.Equal(t, "password123", req.PostForm.Get("password"))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("username=bob"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, ParseForm(req))
	require.Equal(t, "bob", req.PostForm.Get("username"))
}
