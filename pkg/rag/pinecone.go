package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"

	"concierge/pkg/config"
)

// Match is one similarity-search hit. Text is empty when the stored
// vector carries no text metadata.
type Match struct {
	Score float64
	Text  string
}

// Index performs namespace-scoped nearest-neighbor queries.
type Index interface {
	Query(ctx context.Context, vector []float32, namespace string, topK int) ([]Match, error)
}

// PineconeIndex queries a Pinecone serverless index through the
// official SDK. Connections are scoped per namespace, so each query
// opens one against the resolved index host.
type PineconeIndex struct {
	client *pinecone.Client
	host   string
	log    *slog.Logger
}

var _ Index = (*PineconeIndex)(nil)

// NewPineconeIndex builds the SDK client. When cfg.IndexHost is empty,
// the index name is resolved to its data-plane host via DescribeIndex.
func NewPineconeIndex(ctx context.Context, cfg config.PineconeConfig, log *slog.Logger) (*PineconeIndex, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("PINECONE_API_KEY is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("initialize pinecone client: %w", err)
	}

	host := indexHost(cfg.IndexHost)
	if host == "" {
		name := strings.TrimSpace(cfg.IndexName)
		if name == "" {
			return nil, errors.New("PINECONE_INDEX_HOST or PINECONE_INDEX_NAME is required")
		}

		described, err := client.DescribeIndex(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve index host: %w", err)
		}
		host = described.Host
	}

	return &PineconeIndex{
		client: client,
		host:   host,
		log:    log.With("component", "rag.pinecone"),
	}, nil
}

// Query returns the topK nearest matches in the namespace, in the
// backend's relevance order. No re-ranking is applied.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, namespace string, topK int) ([]Match, error) {
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: p.host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("connect to index: %w", err)
	}
	defer conn.Close()

	response, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	matches := matchesFromScored(response.Matches)
	p.log.Debug("Similarity query completed", "namespace", namespace, "top_k", topK, "matches", len(matches))
	return matches, nil
}

// matchesFromScored flattens SDK results into Match values, preserving
// the backend's order.
func matchesFromScored(scored []*pinecone.ScoredVector) []Match {
	matches := make([]Match, 0, len(scored))
	for _, hit := range scored {
		if hit == nil {
			continue
		}

		match := Match{Score: float64(hit.Score)}
		if hit.Vector != nil {
			match.Text = metadataText(hit.Vector.Metadata)
		}
		matches = append(matches, match)
	}

	return matches
}

// metadataText extracts the "text" metadata field, the only field this
// relay stores alongside its vectors.
func metadataText(metadata *pinecone.Metadata) string {
	if metadata == nil {
		return ""
	}

	value, ok := metadata.Fields["text"]
	if !ok {
		return ""
	}

	return value.GetStringValue()
}

// indexHost strips any scheme and trailing slash from a configured
// host, since the SDK expects the bare data-plane hostname.
func indexHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}
