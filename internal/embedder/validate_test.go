package embedder

import (
	"log/slog"
	"testing"
)

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model string
		want  bool
	}{
		{"gemini-2.5-flash", true},
		{"gpt-4o", true},
		{"llama3.1", true},
		{"gemini-embedding-001", false},
		{"text-embedding-3-small", false},
		{"nomic-embed-text", false},
	}
	for _, tt := range tests {
		if got := looksLikeChatModel(tt.model); got != tt.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestValidateForRAG_MissingGeminiKey(t *testing.T) {
	clearEmbeddingEnv(t)
	if err := ValidateForRAG(slog.Default()); err == nil {
		t.Fatal("expected error for gemini backend without API key")
	}
}

func TestValidateForRAG_GeminiWithKey(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("GEMINI_API_KEY", "AIza-test")
	if err := ValidateForRAG(slog.Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateForRAG_OllamaNeedsNoKey(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	if err := ValidateForRAG(slog.Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateForRAG_UnknownBackend(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "voyage")
	if err := ValidateForRAG(slog.Default()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
