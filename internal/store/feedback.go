package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pedrofnts/konver-app-sub001/internal/utils"
)

// CreateFeedback stores a new correction in pending state. Keywords are
// derived from the user message context when not supplied by the caller.
func (s *SQLiteStore) CreateFeedback(record *FeedbackRecord) error {
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now()
	if record.Status == "" {
		record.Status = FeedbackPending
	}
	if record.SimilarityKeywords == nil {
		record.SimilarityKeywords = utils.ExtractKeywords(record.UserMessageContext)
	}

	keywordsJSON, err := json.Marshal(record.SimilarityKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal similarity keywords: %w", err)
	}

	var context any
	if len(record.ConversationContext) > 0 {
		context = string(record.ConversationContext)
	}

	_, err = s.db.Exec(
		`INSERT INTO message_feedback
         (id, bot_id, user_message_context, original_bot_response, improved_response, status, similarity_keywords, conversation_context, times_applied, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		record.ID, record.BotID, record.UserMessageContext, record.OriginalBotResponse, record.ImprovedResponse,
		record.Status, string(keywordsJSON), context, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

const feedbackColumns = `id, bot_id, user_message_context, original_bot_response, improved_response,
    status, similarity_keywords, conversation_context, times_applied, last_applied_at, created_at`

func (s *SQLiteStore) scanFeedback(row interface{ Scan(...any) error }) (*FeedbackRecord, error) {
	var record FeedbackRecord
	var keywordsJSON string
	var context sql.NullString
	var lastApplied sql.NullTime

	err := row.Scan(
		&record.ID, &record.BotID, &record.UserMessageContext, &record.OriginalBotResponse, &record.ImprovedResponse,
		&record.Status, &keywordsJSON, &context, &record.TimesApplied, &lastApplied, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(keywordsJSON), &record.SimilarityKeywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal similarity keywords for feedback %s: %w", record.ID, err)
	}
	if context.Valid {
		record.ConversationContext = []byte(context.String)
	}
	if lastApplied.Valid {
		record.LastAppliedAt = &lastApplied.Time
	}
	return &record, nil
}

func (s *SQLiteStore) GetFeedbackByID(feedbackID, botID string) (*FeedbackRecord, error) {
	row := s.db.QueryRow(
		"SELECT "+feedbackColumns+" FROM message_feedback WHERE id = ? AND bot_id = ?",
		feedbackID, botID,
	)
	record, err := s.scanFeedback(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) queryFeedback(query string, args ...any) ([]FeedbackRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var records []FeedbackRecord
	for rows.Next() {
		record, err := s.scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// ListFeedbackByBot returns all of a bot's records, optionally filtered
// by status, newest first. Used by the console review screen.
func (s *SQLiteStore) ListFeedbackByBot(botID, status string) ([]FeedbackRecord, error) {
	if status != "" {
		return s.queryFeedback(
			"SELECT "+feedbackColumns+" FROM message_feedback WHERE bot_id = ? AND status = ? ORDER BY created_at DESC, id",
			botID, status,
		)
	}
	return s.queryFeedback(
		"SELECT "+feedbackColumns+" FROM message_feedback WHERE bot_id = ? ORDER BY created_at DESC, id",
		botID,
	)
}

// SearchFeedbackText finds applied records whose stored user message
// context contains the given text, case-insensitively, most-trusted
// corrections first.
func (s *SQLiteStore) SearchFeedbackText(botID, text string, limit int) ([]FeedbackRecord, error) {
	return s.queryFeedback(
		`SELECT `+feedbackColumns+` FROM message_feedback
         WHERE bot_id = ? AND status = ? AND instr(lower(user_message_context), lower(?)) > 0
         ORDER BY times_applied DESC, created_at DESC, id LIMIT ?`,
		botID, FeedbackApplied, text, limit,
	)
}

// SearchFeedbackByKeywords finds applied records whose stored keyword set
// intersects tokens, ordered by times_applied descending. The overlap
// check runs in Go because keywords are stored as a JSON array.
func (s *SQLiteStore) SearchFeedbackByKeywords(botID string, tokens []string, limit int) ([]FeedbackRecord, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	candidates, err := s.queryFeedback(
		`SELECT `+feedbackColumns+` FROM message_feedback
         WHERE bot_id = ? AND status = ?
         ORDER BY times_applied DESC, created_at DESC, id`,
		botID, FeedbackApplied,
	)
	if err != nil {
		return nil, err
	}

	var matches []FeedbackRecord
	for _, record := range candidates {
		if utils.HasOverlap(tokens, record.SimilarityKeywords) {
			matches = append(matches, record)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

// FindContainmentMatch returns the most-trusted applied record whose
// stored context contains the message, or whose context is contained in
// the message, case-insensitively. Ties on times_applied go to the most
// recently created record.
func (s *SQLiteStore) FindContainmentMatch(botID, message string) (*FeedbackRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+feedbackColumns+` FROM message_feedback
         WHERE bot_id = ? AND status = ?
           AND (instr(lower(user_message_context), lower(?)) > 0 OR instr(lower(?), lower(user_message_context)) > 0)
         ORDER BY times_applied DESC, created_at DESC, id LIMIT 1`,
		botID, FeedbackApplied, message, message,
	)
	record, err := s.scanFeedback(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No match
		}
		return nil, fmt.Errorf("failed to find containment match: %w", err)
	}
	return record, nil
}

// RecordFeedbackUse bumps the popularity counter for a chosen record.
// The increment happens inside the UPDATE so concurrent selections never
// under-count.
func (s *SQLiteStore) RecordFeedbackUse(feedbackID, botID string) error {
	res, err := s.db.Exec(
		"UPDATE message_feedback SET times_applied = times_applied + 1, last_applied_at = ? WHERE id = ? AND bot_id = ?",
		time.Now(), feedbackID, botID,
	)
	if err != nil {
		return fmt.Errorf("failed to record feedback use: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PromoteFeedback transitions a record to applied, scoped to the owning
// bot so guessed ids from another tenant do not match.
func (s *SQLiteStore) PromoteFeedback(feedbackID, botID string) (*FeedbackRecord, error) {
	res, err := s.db.Exec(
		"UPDATE message_feedback SET status = ? WHERE id = ? AND bot_id = ?",
		FeedbackApplied, feedbackID, botID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to promote feedback: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, nil // Not found for this bot
	}
	return s.GetFeedbackByID(feedbackID, botID)
}

// FeedbackStatsByBot aggregates counts by status and the sum of
// times_applied across every record regardless of status.
func (s *SQLiteStore) FeedbackStatsByBot(botID string) (*FeedbackStats, error) {
	stats := &FeedbackStats{ByStatus: make(map[string]int)}

	rows, err := s.db.Query(
		"SELECT status, COUNT(*), COALESCE(SUM(times_applied), 0) FROM message_feedback WHERE bot_id = ? GROUP BY status",
		botID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count, applications int
		if err := rows.Scan(&status, &count, &applications); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.TotalApplications += applications
	}
	return stats, rows.Err()
}
