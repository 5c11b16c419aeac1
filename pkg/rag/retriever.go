package rag

import (
	"context"
	"errors"
	"log/slog"

	"concierge/pkg/metrics"
)

// Retriever turns a free-text query into ranked context chunks scoped to
// one namespace. Every failure degrades to an empty result; retrieval is
// never allowed to halt the pipeline.
type Retriever struct {
	embedder Embedder
	index    Index
	topK     int
	log      *slog.Logger
}

// NewRetriever wires an embedder and an index. topK must be positive.
func NewRetriever(embedder Embedder, index Index, topK int, log *slog.Logger) (*Retriever, error) {
	if embedder == nil || index == nil {
		return nil, errors.New("embedder and index are required")
	}
	if topK <= 0 {
		return nil, errors.New("top_k must be positive")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		log:      log.With("component", "rag.retriever"),
	}, nil
}

// Retrieve embeds the query and runs a similarity search in the
// namespace. An empty embedding short-circuits to no chunks without
// touching the index. Matches without text metadata are dropped;
// ordering follows the backend's ranking.
func (r *Retriever) Retrieve(ctx context.Context, query string, namespace string) []string {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.log.Error("Embedding failed, skipping retrieval", "error", err)
		metrics.BackendErrors.WithLabelValues("embedding").Inc()
		return nil
	}
	if len(vector) == 0 {
		r.log.Warn("Empty embedding, skipping retrieval")
		return nil
	}

	matches, err := r.index.Query(ctx, vector, namespace, r.topK)
	if err != nil {
		r.log.Error("Similarity query failed", "namespace", namespace, "error", err)
		metrics.BackendErrors.WithLabelValues("search").Inc()
		return nil
	}

	chunks := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Text == "" {
			r.log.Debug("Dropping match without text metadata", "score", match.Score)
			continue
		}
		chunks = append(chunks, match.Text)
	}

	r.log.Info("Context retrieved", "namespace", namespace, "matches", len(matches), "chunks", len(chunks))
	metrics.ContextChunks.Observe(float64(len(chunks)))
	return chunks
}

// Disabled is a Retriever substitute that always returns no context.
// Local chat mode uses it when no search backend is configured.
type Disabled struct{}

// Retrieve always returns nil.
func (Disabled) Retrieve(context.Context, string, string) []string {
	return nil
}
