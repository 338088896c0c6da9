package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/auth"
)

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--secret", "cli-secret", "--sub", "user-9", "--username", "bob")
	require.NoError(t, err)

	v, err := auth.NewVerifier("cli-secret")
	require.NoError(t, err)
	id, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-9", id.Subject)
	assert.Equal(t, "bob", id.Username)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "token")
	assert.Error(t, err)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEnvFileMustExistWhenGiven(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.env")
	_, err := execute(t, "--env-file", missing, "token", "--secret", "x")
	assert.Error(t, err)

	envFile := filepath.Join(t.TempDir(), "cli.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PRESIGNCTL_TEST_SECRET=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PRESIGNCTL_TEST_SECRET") })
	_, err = execute(t, "--env-file", envFile, "token", "--secret", "x")
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("PRESIGNCTL_TEST_SECRET"))
}

// fakeDeployment serves the gateway routes and the store behind them
func fakeDeployment(t *testing.T) (gateway *httptest.Server, stored map[string][]byte) {
	t.Helper()
	stored = map[string][]byte{}

	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/uploads/")
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			stored[key] = body
		case http.MethodGet:
			body, ok := stored[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(store.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/presign/upload", func(w http.ResponseWriter, r *http.Request) {
		var req presign.UploadRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		key := "raw/" + req.Filename
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(presign.UploadURLResponse{
			OK: true, URL: store.URL + "/uploads/" + key, Key: key, Bucket: "uploads", Method: http.MethodPut,
		})
	})
	mux.HandleFunc("/download-url", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(presign.DownloadURLResponse{
			URL: store.URL + "/uploads/" + key, Key: key, Bucket: "uploads", Method: http.MethodGet,
		})
	})
	mux.HandleFunc("/list-files", func(w http.ResponseWriter, r *http.Request) {
		resp := presign.ListResponse{Items: []presign.ListItem{{Key: "raw/a.txt", Size: 1}}}
		if r.URL.Query().Get("cursor") == "" {
			next := "page-2"
			resp.IsTruncated = true
			resp.NextCursor = &next
		} else {
			resp.Items = []presign.ListItem{{Key: "raw/b.txt", Size: 2}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	gateway = httptest.NewServer(mux)
	t.Cleanup(gateway.Close)
	return gateway, stored
}

func TestUploadAndDownloadCommands(t *testing.T) {
	gw, stored := fakeDeployment(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("some notes"), 0o644))

	out, err := execute(t, "--server", gw.URL, "upload", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Key: raw/notes.txt")
	assert.Equal(t, "some notes", string(stored["raw/notes.txt"]))

	dst := filepath.Join(dir, "copy.txt")
	out, err = execute(t, "--server", gw.URL, "download", "raw/notes.txt", "-o", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "(10 bytes)")

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "some notes", string(got))
}

func TestDownloadMissingRemovesOutput(t *testing.T) {
	gw, _ := fakeDeployment(t)
	dst := filepath.Join(t.TempDir(), "missing.txt")

	_, err := execute(t, "--server", gw.URL, "download", "raw/missing.txt", "-o", dst)
	assert.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestListCommand(t *testing.T) {
	gw, _ := fakeDeployment(t)

	out, err := execute(t, "--server", gw.URL, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "raw/a.txt")
	assert.Contains(t, out, "next cursor: page-2")
	assert.NotContains(t, out, "raw/b.txt")

	out, err = execute(t, "--server", gw.URL, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "raw/a.txt")
	assert.Contains(t, out, "raw/b.txt")
	assert.NotContains(t, out, "next cursor")
}

func TestUploadURLCommand(t *testing.T) {
	gw, _ := fakeDeployment(t)

	out, err := execute(t, "--server", gw.URL, "upload-url", "--filename", "a.pdf")
	require.NoError(t, err)

	var grant presign.UploadURLResponse
	require.NoError(t, json.Unmarshal([]byte(out), &grant))
	assert.Equal(t, "raw/a.pdf", grant.Key)
	assert.Equal(t, http.MethodPut, grant.Method)
}
