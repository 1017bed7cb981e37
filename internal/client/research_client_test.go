package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/podcastgen/api/internal/config"
)

func newTestResearch(t *testing.T, handler http.HandlerFunc) (*ResearchClient, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewResearchClient(srv.Client(), &config.ResearchConfig{
		WikipediaURL: srv.URL + "/w/api.php",
		UserAgent:    "PodcastGen-Test/1.0",
		MaxChars:     3000,
		MaxLines:     120,
	}), srv.URL
}

func TestResearch_SearchTopic(t *testing.T) {
	c, _ := newTestResearch(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "opensearch":
			if q.Get("search") != "Quantum Computing" {
				t.Errorf("unexpected search %q", q.Get("search"))
			}
			w.Write([]byte(`["Quantum Computing",["Quantum computing"],[""],["https://en.wikipedia.org/wiki/Quantum_computing"]]`))
		case "query":
			if q.Get("exchars") != "3000" {
				t.Errorf("expected exchars=3000, got %q", q.Get("exchars"))
			}
			w.Write([]byte(`{"query":{"pages":{"123":{"title":"Quantum computing","extract":"  A quantum computer exploits superposition.  "}}}}`))
		}
	})

	article, err := c.SearchTopic(context.Background(), "Quantum Computing")
	if err != nil {
		t.Fatalf("SearchTopic failed: %v", err)
	}
	if article.Title != "Quantum computing" || article.Extract != "A quantum computer exploits superposition." {
		t.Errorf("unexpected article %+v", article)
	}
}

func TestResearch_SearchTopic_NoResults(t *testing.T) {
	c, _ := newTestResearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["zzzz",[],[],[]]`))
	})

	if _, err := c.SearchTopic(context.Background(), "zzzz"); !errors.Is(err, ErrNoArticle) {
		t.Errorf("expected ErrNoArticle, got %v", err)
	}
}

func TestResearch_FetchPage(t *testing.T) {
	c, base := newTestResearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><style>p{}</style></head><body>
			<header>Site header</header>
			<nav>Home | About</nav>
			<article><h1>Big <b>News</b></h1><p>First paragraph.</p><script>track()</script><p>Second.</p></article>
			<footer>Copyright</footer>
		</body></html>`))
	})

	text, err := c.FetchPage(context.Background(), base+"/story")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	want := "Big News\nFirst paragraph.\nSecond."
	if text != want {
		t.Errorf("unexpected text %q, want %q", text, want)
	}
}

func TestResearch_FetchPage_NotFound(t *testing.T) {
	c, base := newTestResearch(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	if _, err := c.FetchPage(context.Background(), base+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestExtractText_LineLimitAndNoise(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><aside>ads</aside><form>login</form>")
	for i := 0; i < 10; i++ {
		sb.WriteString("<p>line</p>")
	}
	sb.WriteString("</body></html>")

	doc, err := html.Parse(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatal(err)
	}
	text := ExtractText(doc, 3)
	if text != "line\nline\nline" {
		t.Errorf("unexpected text %q", text)
	}
}
