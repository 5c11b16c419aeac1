// Package pipeline runs one inbound message through the full relay
// sequence: persist the guest turn, resolve the sender's retrieval
// namespace, assemble context and history, generate a structured
// reply, deliver it, and persist the bot turn.
//
// The pipeline never returns an error to the channel: every failure
// mode degrades to either an apology reply or a silent skip, so the
// webhook can always acknowledge.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"concierge/pkg/channel"
	"concierge/pkg/metrics"
	"concierge/pkg/prompt"
	"concierge/pkg/store"
)

// Reply text used when the sender has no provisioned profile.
const unknownUserApology = "Sorry, I can't seem to find your user profile. Please contact support."

// Reply text used when generation fails after the sender was resolved.
const generationApology = "I'm sorry, I encountered an error and can't respond right now."

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	// OutcomeReplied means a generated answer was handed to the channel.
	OutcomeReplied Outcome = "replied"

	// OutcomeUnknownUser means the sender had no profile and received
	// the support apology instead of an answer.
	OutcomeUnknownUser Outcome = "unknown_user"

	// OutcomeGenerationFailed means the model call failed and the sender
	// received the generic apology.
	OutcomeGenerationFailed Outcome = "generation_failed"
)

// HistoryStore is the slice of the store contract the pipeline needs.
type HistoryStore interface {
	LookupNamespace(ctx context.Context, phoneNumber string) (string, error)
	RecentHistory(ctx context.Context, phoneNumber string, limit int) ([]store.Entry, error)
	AppendHistory(ctx context.Context, phoneNumber string, sender store.Role, message string) error
}

// Retriever produces namespace-scoped context chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, namespace string) []string
}

// Generator produces the model's raw answer text for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, request prompt.Request) (string, error)
}

// Pipeline wires the store, retriever, and generator behind a single
// channel.Handler.
type Pipeline struct {
	store        HistoryStore
	retriever    Retriever
	generator    Generator
	historyLimit int
	log          *slog.Logger
}

// New constructs a pipeline. historyLimit bounds how many prior turns
// are loaded into each prompt.
func New(historyStore HistoryStore, retriever Retriever, generator Generator, historyLimit int, log *slog.Logger) (*Pipeline, error) {
	if historyStore == nil {
		return nil, errors.New("store is required")
	}
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if historyLimit <= 0 {
		return nil, errors.New("history limit must be positive")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		store:        historyStore,
		retriever:    retriever,
		generator:    generator,
		historyLimit: historyLimit,
		log:          log.With("component", "pipeline"),
	}, nil
}

// Handler adapts the pipeline to the channel contract.
func (p *Pipeline) Handler() channel.Handler {
	return func(ctx context.Context, senderID string, text string, reply channel.ReplyFunc) {
		p.Handle(ctx, senderID, text, reply)
	}
}

// Handle runs the full relay sequence for one inbound message and
// reports the terminal outcome.
func (p *Pipeline) Handle(ctx context.Context, senderID string, text string, reply channel.ReplyFunc) Outcome {
	started := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(started).Seconds())
	}()

	log := p.log.With("sender_id", senderID)

	// The guest turn is recorded before identity resolution so the
	// transcript keeps messages from senders who are provisioned later.
	if err := p.store.AppendHistory(ctx, senderID, store.RoleUser, text); err != nil {
		log.Warn("Failed to persist guest turn", "error", err)
		metrics.BackendErrors.WithLabelValues("store").Inc()
	}

	namespace, err := p.store.LookupNamespace(ctx, senderID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Info("Sender has no profile")
		} else {
			log.Error("Failed to look up profile", "error", err)
			metrics.BackendErrors.WithLabelValues("store").Inc()
		}

		p.deliver(ctx, log, reply, unknownUserApology)
		metrics.Replies.WithLabelValues(string(OutcomeUnknownUser)).Inc()
		return OutcomeUnknownUser
	}

	history, err := p.store.RecentHistory(ctx, senderID, p.historyLimit)
	if err != nil {
		log.Warn("Failed to load conversation history", "error", err)
		metrics.BackendErrors.WithLabelValues("store").Inc()
		history = nil
	}

	chunks := p.retriever.Retrieve(ctx, text, namespace)

	request := prompt.Compose(text, history, chunks)

	answer, err := p.generator.Generate(ctx, request)
	if err != nil {
		log.Error("Failed to generate reply", "error", err)
		metrics.BackendErrors.WithLabelValues("generation").Inc()

		p.deliver(ctx, log, reply, generationApology)
		metrics.Replies.WithLabelValues(string(OutcomeGenerationFailed)).Inc()
		return OutcomeGenerationFailed
	}

	p.deliver(ctx, log, reply, answer)

	if err := p.store.AppendHistory(ctx, senderID, store.RoleBot, answer); err != nil {
		log.Warn("Failed to persist bot turn", "error", err)
		metrics.BackendErrors.WithLabelValues("store").Inc()
	}

	log.Info("Replied", "namespace", namespace, "context_chunks", len(chunks))
	metrics.Replies.WithLabelValues(string(OutcomeReplied)).Inc()
	return OutcomeReplied
}

// deliver hands text to the channel. Delivery failures are logged and
// absorbed: the webhook acknowledgement must not depend on them.
func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, reply channel.ReplyFunc, text string) {
	if reply == nil {
		return
	}

	if err := reply(ctx, text); err != nil {
		log.Error("Failed to deliver reply", "error", err)
		metrics.BackendErrors.WithLabelValues("delivery").Inc()
	}
}
