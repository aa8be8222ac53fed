package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProviderEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "text-embedding-3-small" || len(req.Input) != 2 {
			t.Errorf("request = %+v", req)
		}
		// answer out of order to check index alignment
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(server.URL+"/v1/", "secret", "text-embedding-3-small", 0)
	results, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(results) != 2 || results[0].Vector[0] != 1 || results[1].Vector[1] != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		failAll bool
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, true, false},
		{"html error page", http.StatusBadGateway, `<html>bad gateway</html>`, true, false},
		{"count mismatch", http.StatusOK, `{"data":[{"index":0,"embedding":[1]}]}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewOpenAIProvider(server.URL, "", "m", 0)
			results, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.failAll {
				for _, r := range results {
					if r.OK() {
						t.Error("misaligned response should fail every item")
					}
				}
			}
		})
	}
}

func TestOpenAIProviderRequiresConfig(t *testing.T) {
	p := &OpenAIProvider{}
	if _, err := p.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error without base URL and model")
	}
}

func TestOllamaProviderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.5, 0.5, 0.5})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "nomic-embed-text", 0)
	vec, err := p.Embed(context.Background(), "slow shipping")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vec = %v", vec)
	}
	if p.ModelName() != "nomic-embed-text" {
		t.Errorf("model = %q", p.ModelName())
	}
}

func TestOllamaProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "missing", 0)
	if _, err := p.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error on 404")
	}
}
