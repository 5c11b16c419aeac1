// Package rag provides context retrieval: query embedding via AWS
// Bedrock and namespace-scoped similarity search via Pinecone.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"concierge/pkg/config"
)

// Embedder converts free text to a fixed-dimensionality vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BedrockEmbedder generates embeddings with an Amazon Titan text model.
type BedrockEmbedder struct {
	client  *bedrockruntime.Client
	modelID string
	log     *slog.Logger
}

var _ Embedder = (*BedrockEmbedder)(nil)

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewBedrockEmbedder builds the Bedrock runtime client. Explicit
// credentials take precedence; otherwise the default AWS chain applies.
func NewBedrockEmbedder(ctx context.Context, cfg config.EmbeddingConfig, log *slog.Logger) (*BedrockEmbedder, error) {
	if log == nil {
		log = slog.Default()
	}

	var awsCfg aws.Config
	var err error
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKeyID,
				cfg.AWSSecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &BedrockEmbedder{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
		log:     log.With("component", "rag.embedder"),
	}, nil
}

// Embed invokes the Titan embedding model with a single text input.
func (e *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	output, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke embedding model: %w", err)
	}

	var parsed titanEmbedResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding model %s returned no vector", e.modelID)
	}

	e.log.Debug("Generated embedding", "model", e.modelID, "dimensions", len(parsed.Embedding))
	return parsed.Embedding, nil
}
