package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/model"
)

func newTestMiniMax(t *testing.T, handler http.HandlerFunc) *MiniMaxClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMiniMaxClient(srv.Client(), &config.MiniMaxConfig{
		APIKey:      "test-key",
		GroupID:     "group-1",
		BaseURL:     srv.URL,
		ChatModel:   "MiniMax-Text-01",
		MusicModel:  "music-01",
		Temperature: 0.85,
		MaxTokens:   4096,
	})
}

func TestMiniMax_ChatCompletion(t *testing.T) {
	c := newTestMiniMax(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text/chatcompletion_v2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "MiniMax-Text-01" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{\"speaker\":\"Alex\",\"text\":\"Hi\"}]"}}],"base_resp":{"status_code":0}}`))
	})

	out, err := c.ChatCompletion(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if out != `[{"speaker":"Alex","text":"Hi"}]` {
		t.Errorf("unexpected content %q", out)
	}
}

func TestMiniMax_ChatCompletion_HTTPError(t *testing.T) {
	c := newTestMiniMax(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := c.ChatCompletion(context.Background(), "system", "user")
	var perr *model.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusBadGateway || perr.Provider != "minimax" {
		t.Errorf("unexpected error %+v", perr)
	}
}

func TestMiniMax_BaseRespError(t *testing.T) {
	c := newTestMiniMax(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base_resp":{"status_code":1004,"status_msg":"authentication failed"}}`))
	})

	if _, err := c.SubmitMusic(context.Background(), &SubmitMusicRequest{Prompt: "jingle"}); err == nil {
		t.Error("expected error for non-zero base_resp status")
	}
}

func TestMiniMax_MusicRoundTrip(t *testing.T) {
	var srvURL string
	c := newTestMiniMax(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/music_generation":
			if r.URL.Query().Get("GroupId") != "group-1" {
				t.Errorf("missing group id")
			}
			var req SubmitMusicRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Model != "music-01" {
				t.Errorf("expected default model, got %q", req.Model)
			}
			w.Write([]byte(`{"task_id":"task-9"}`))
		case "/v1/query/music_generation":
			if r.URL.Query().Get("task_id") != "task-9" {
				t.Errorf("unexpected task id %q", r.URL.Query().Get("task_id"))
			}
			w.Write([]byte(`{"status":"Success","file":{"download_url":"` + srvURL + `/files/j.wav"}}`))
		case "/files/j.wav":
			w.Write([]byte("RIFF"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	srvURL = c.baseURL

	taskID, err := c.SubmitMusic(context.Background(), &SubmitMusicRequest{Prompt: "jingle"})
	if err != nil || taskID != "task-9" {
		t.Fatalf("SubmitMusic = %q, %v", taskID, err)
	}
	status, err := c.GetMusicStatus(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetMusicStatus failed: %v", err)
	}
	if status.Status != MusicStatusSuccess {
		t.Errorf("unexpected status %q", status.Status)
	}
	data, err := c.Download(context.Background(), status.File.DownloadURL)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("Download = %q, %v", data, err)
	}
}

func TestMiniMax_IsConfigured(t *testing.T) {
	c := NewMiniMaxClient(http.DefaultClient, &config.MiniMaxConfig{APIKey: "k"})
	if !c.IsConfigured() {
		t.Error("expected chat to be configured")
	}
	if c.IsMusicConfigured() {
		t.Error("expected music to require a group id")
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"aé", 2, "a..."},
		{"日本語", 4, "日..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}
