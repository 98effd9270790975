package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records the last request body and answers like the voice service.
type fakeService struct {
	bodies chan map[string]string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string

	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Path {
	case pathSynthesize, pathSynthesizeFile:
		f.bodies <- body

		if body["text"] == "fail" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Google Cloud TTS not configured","details":"Service account key missing on server."}`))

			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("X-Text-Length", "10000")
		w.Header().Set("X-Chunk-Count", "3")
		w.Header().Set("X-Likely-Scanned", "true")
		_, _ = w.Write([]byte("ID3-audio"))
	case pathHealth:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","synthesis":true,"checks":{"database":"ok"}}`))
	case pathGenerateImage:
		w.Header().Set("Content-Type", "application/json")

		if body["prompt"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Prompt is required"}`))

			return
		}

		_, _ = w.Write([]byte(`{"success":true,"data":"http://localhost/api/image/gen_1.png"}`))
	default:
		http.NotFound(w, r)
	}
}

func startFakeService(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()

	fake := &fakeService{bodies: make(chan map[string]string, 4)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return server, fake
}

func execute(t *testing.T, serverURL string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", serverURL, "--log-dir", t.TempDir()}, args...))

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func TestRootCmd_HasExpectedSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"synthesize", "synthesize-file", "image", "health"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("server"))
}

func TestSynthesize_WritesAudio(t *testing.T) {
	t.Parallel()

	server, fake := startFakeService(t)
	output := filepath.Join(t.TempDir(), "nested", "hello.mp3")

	stdout, _, err := execute(t, server.URL, "synthesize", "--text", "Hello", "--gender", "MALE", "--output", output)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"text": "Hello", "gender": "MALE"}, <-fake.bodies)
	assert.Contains(t, stdout, "Generated: "+output)
	assert.Contains(t, stdout, "3 chunks")

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(written))
}

func TestSynthesize_ReportsServiceError(t *testing.T) {
	t.Parallel()

	server, _ := startFakeService(t)

	_, _, err := execute(t, server.URL, "synthesize", "--text", "fail", "--output", filepath.Join(t.TempDir(), "x.mp3"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Google Cloud TTS not configured", apiErr.Message)

	_, _, err = execute(t, server.URL, "synthesize")
	require.ErrorIs(t, err, errTextRequired)
}

func TestSynthesizeFile_SendsDocument(t *testing.T) {
	t.Parallel()

	server, fake := startFakeService(t)

	dir := t.TempDir()
	document := filepath.Join(dir, "Chapter 1.txt")
	require.NoError(t, os.WriteFile(document, []byte("Once upon a time"), 0o600))

	output := filepath.Join(dir, "out.mp3")

	_, stderr, err := execute(t, server.URL, "synthesize-file", "--file", document, "--intro", "Hello", "--output", output)
	require.NoError(t, err)

	body := <-fake.bodies
	assert.Equal(t, "text/plain", body["mimeType"])
	assert.Equal(t, "Hello", body["introText"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("Once upon a time")), body["fileData"])
	assert.Contains(t, stderr, "looks scanned")

	_, _, err = execute(t, server.URL, "synthesize-file")
	require.ErrorIs(t, err, errFileOrIntro)

	_, _, err = execute(t, server.URL, "synthesize-file", "--file", filepath.Join(dir, "speech.mp3"))
	require.ErrorIs(t, err, errAudioInput)
}

func TestImageAndHealth(t *testing.T) {
	t.Parallel()

	server, _ := startFakeService(t)

	stdout, _, err := execute(t, server.URL, "image", "--prompt", "a red kite")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/api/image/gen_1.png\n", stdout)

	stdout, _, err = execute(t, server.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, stdout, "status: ok, synthesis: true")
	assert.Contains(t, stdout, "database: ok")

	_, _, err = execute(t, "http://127.0.0.1:1", "health")
	require.Error(t, err)
}
