package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMP3Audio = "ID3-mp3-bytes"

func TestHTTPClient_SynthesizeSpeech_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/v1/synthesize", request.URL.Path)
		assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
		assert.Equal(t, "audio/mpeg", request.Header.Get("Accept"))

		var req tts.Request

		assert.NoError(t, json.NewDecoder(request.Body).Decode(&req))
		assert.Equal(t, "Hello world", req.Text)
		assert.Equal(t, "en-US", req.LanguageCode)
		assert.Equal(t, "en-US-Neural2-F", req.VoiceName)
		assert.Equal(t, "MP3", req.AudioEncoding)
		assert.InEpsilon(t, 2.0, req.VolumeGainDB, 0.001)

		writer.Header().Set("Content-Type", "audio/mpeg")
		_, _ = writer.Write([]byte(testMP3Audio))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL+"/", 5*time.Second)

	var synthesizer core.Synthesizer = client

	audioData, err := synthesizer.SynthesizeSpeech(
		context.Background(),
		"Hello world",
		tts.SelectVoice("en-US", tts.GenderFemale),
		audio.DocumentConfig(audio.FORMAT_MP3),
	)
	require.NoError(t, err)
	assert.Equal(t, testMP3Audio, string(audioData))
}

func TestHTTPClient_GenerateSpeech_EmptyText(t *testing.T) {
	t.Parallel()

	client := tts.NewHTTPClient("http://127.0.0.1:1", time.Second)

	_, err := client.GenerateSpeech(context.Background(), tts.Request{AudioEncoding: "MP3"})
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}

func TestHTTPClient_GenerateSpeech_ServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(writer).Encode(tts.ErrorResponse{
			Detail:    "Unknown voice",
			ErrorCode: "INVALID_VOICE",
		})
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 5*time.Second)

	_, err := client.GenerateSpeech(context.Background(), tts.Request{Text: "hi", AudioEncoding: "MP3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown voice")
	assert.Contains(t, err.Error(), "INVALID_VOICE")
}

func TestHTTPClient_GenerateSpeech_RawErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		_, _ = writer.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 5*time.Second)

	_, err := client.GenerateSpeech(context.Background(), tts.Request{Text: "hi", AudioEncoding: "MP3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestHTTPClient_GenerateSpeech_WrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/plain")
		_, _ = writer.Write([]byte("not audio"))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 5*time.Second)

	_, err := client.GenerateSpeech(context.Background(), tts.Request{Text: "hi", AudioEncoding: "MP3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestHTTPClient_GenerateSpeech_EmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 5*time.Second)

	_, err := client.GenerateSpeech(context.Background(), tts.Request{Text: "hi", AudioEncoding: "MP3"})
	require.ErrorIs(t, err, tts.ErrReceivedEmptyAudio)
}

func TestHTTPClient_GenerateSpeech_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writer.Header().Set("Content-Type", "audio/mpeg")
		_, _ = writer.Write([]byte(testMP3Audio))
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 20*time.Millisecond)

	_, err := client.GenerateSpeech(context.Background(), tts.Request{Text: "hi", AudioEncoding: "MP3"})
	require.Error(t, err)
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/health", request.URL.Path)
		assert.Equal(t, http.MethodGet, request.Method)
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := tts.NewHTTPClient(server.URL, 5*time.Second)
	require.NoError(t, client.HealthCheck(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	require.Error(t, tts.NewHTTPClient(down.URL, 5*time.Second).HealthCheck(context.Background()))
}
