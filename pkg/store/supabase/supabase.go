// Package supabase implements the history store on the Supabase client
// library, which speaks PostgREST under the hood.
//
// Two tables are expected: users (phone_number, pinecone_namespace) and
// conversation_history (id, user_phone_number, sender, message, timestamp).
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"concierge/pkg/store"
)

// Store talks to a Supabase project with the service key.
type Store struct {
	client       *supa.Client
	historyLimit int
	log          *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New validates connection settings and returns a Supabase-backed store.
func New(projectURL string, apiKey string, historyLimit int, log *slog.Logger) (*Store, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" {
		return nil, errors.New("SUPABASE_URL is required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("SUPABASE_KEY is required")
	}
	if historyLimit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", historyLimit)
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := supa.NewClient(projectURL, apiKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("initialize supabase client: %w", err)
	}

	return &Store{
		client:       client,
		historyLimit: historyLimit,
		log:          log.With("component", "store.supabase"),
	}, nil
}

type namespaceRow struct {
	PineconeNamespace string `json:"pinecone_namespace"`
}

type historyRow struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type historyIDRow struct {
	ID int64 `json:"id"`
}

type insertRow struct {
	UserPhoneNumber string `json:"user_phone_number"`
	Sender          string `json:"sender"`
	Message         string `json:"message"`
}

// LookupNamespace fetches the namespace column for one user row.
func (s *Store) LookupNamespace(ctx context.Context, phoneNumber string) (string, error) {
	data, _, err := s.client.From("users").
		Select("pinecone_namespace", "", false).
		Eq("phone_number", phoneNumber).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("lookup namespace: %w", err)
	}

	var rows []namespaceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("decode namespace rows: %w", err)
	}
	if len(rows) == 0 {
		return "", store.ErrUserNotFound
	}

	return rows[0].PineconeNamespace, nil
}

// RecentHistory fetches the newest limit rows (timestamp descending) and
// reverses them so callers see the transcript oldest-first.
func (s *Store) RecentHistory(ctx context.Context, phoneNumber string, limit int) ([]store.Entry, error) {
	data, _, err := s.client.From("conversation_history").
		Select("sender,message", "", false).
		Eq("user_phone_number", phoneNumber).
		Order("timestamp", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	var rows []historyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode history rows: %w", err)
	}

	entries := make([]store.Entry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		entries = append(entries, store.Entry{
			Sender:  store.Role(rows[i].Sender),
			Message: rows[i].Message,
		})
	}

	return entries, nil
}

// AppendHistory inserts one turn, then deletes the oldest excess rows if
// the sender's transcript has grown past the limit. The two steps are not
// transactional; a failed trim leaves extra rows for the next append.
func (s *Store) AppendHistory(ctx context.Context, phoneNumber string, sender store.Role, message string) error {
	row := insertRow{
		UserPhoneNumber: phoneNumber,
		Sender:          string(sender),
		Message:         message,
	}
	if _, _, err := s.client.From("conversation_history").
		Insert(row, false, "", "minimal", "").
		ExecuteWithContext(ctx); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	data, _, err := s.client.From("conversation_history").
		Select("id", "", false).
		Eq("user_phone_number", phoneNumber).
		Order("timestamp", &postgrest.OrderOpts{Ascending: true}).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("count history entries: %w", err)
	}

	var ids []historyIDRow
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("decode history ids: %w", err)
	}

	excess := len(ids) - s.historyLimit
	if excess <= 0 {
		return nil
	}

	oldest := make([]string, 0, excess)
	for _, row := range ids[:excess] {
		oldest = append(oldest, strconv.FormatInt(row.ID, 10))
	}

	if _, _, err := s.client.From("conversation_history").
		Delete("", "").
		In("id", oldest).
		ExecuteWithContext(ctx); err != nil {
		return fmt.Errorf("trim history entries: %w", err)
	}

	s.log.Debug("Trimmed conversation history", "phone_number", phoneNumber, "deleted", excess)
	return nil
}

// Ping issues a minimal read against the users table.
func (s *Store) Ping(ctx context.Context) error {
	if _, _, err := s.client.From("users").
		Select("phone_number", "", false).
		Limit(1, "").
		ExecuteWithContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}
