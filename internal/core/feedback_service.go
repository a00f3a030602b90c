package core

import (
	"strings"

	"github.com/pedrofnts/konver-app-sub001/internal/store"
	"github.com/pedrofnts/konver-app-sub001/internal/utils"
)

const (
	DefaultSearchLimit    = 5   // Records returned by a search when no limit is given
	DefaultMatchThreshold = 0.7 // Minimum keyword score to accept a best-response match

	// Number of keyword candidates scored in the best-response fallback.
	maxKeywordCandidates = 3
)

// FeedbackService matches incoming user messages against stored human
// corrections for a bot.
type FeedbackService struct {
	dbStore *store.SQLiteStore
}

func NewFeedbackService(db *store.SQLiteStore) *FeedbackService {
	return &FeedbackService{dbStore: db}
}

// BestResponse is the outcome of a best-response lookup. Confidence is
// 1.0 for containment matches and the keyword overlap score otherwise.
type BestResponse struct {
	Found            bool    `json:"found"`
	ImprovedResponse string  `json:"improved_response,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	FeedbackID       string  `json:"feedback_id,omitempty"`
}

// SearchFeedback returns up to limit applied corrections relevant to the
// user message. A text-containment pass runs first; when it yields
// nothing, a keyword-overlap fallback runs. Results are merged with
// primary matches taking precedence on duplicate ids. Pure read.
func (s *FeedbackService) SearchFeedback(botID, userMessage string, limit int) ([]store.FeedbackRecord, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ValidationError("userMessage is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var primary []store.FeedbackRecord
	cleaned := utils.StripPunctuation(userMessage)
	if cleaned != "" {
		var err error
		primary, err = s.dbStore.SearchFeedbackText(botID, cleaned, limit)
		if err != nil {
			return nil, StorageError(err, "feedback text search failed")
		}
	}

	var fallback []store.FeedbackRecord
	if len(primary) == 0 {
		tokens := utils.ExtractKeywords(userMessage)
		var err error
		fallback, err = s.dbStore.SearchFeedbackByKeywords(botID, tokens, limit)
		if err != nil {
			return nil, StorageError(err, "feedback keyword search failed")
		}
	}

	seen := make(map[string]bool)
	results := make([]store.FeedbackRecord, 0, limit)
	for _, record := range append(primary, fallback...) {
		if seen[record.ID] {
			continue
		}
		seen[record.ID] = true
		results = append(results, record)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// GetBestResponse finds the single correction to substitute for the user
// message, or reports no match. A containment match always wins with
// confidence 1.0; otherwise the top keyword candidates are scored and the
// best one is accepted only when its score reaches the threshold. On
// acceptance the record's popularity counter is bumped.
func (s *FeedbackService) GetBestResponse(botID, userMessage string, threshold float64) (*BestResponse, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ValidationError("userMessage is required")
	}
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	// Step 1: bidirectional case-insensitive containment.
	match, err := s.dbStore.FindContainmentMatch(botID, strings.TrimSpace(userMessage))
	if err != nil {
		return nil, StorageError(err, "feedback containment search failed")
	}
	if match != nil {
		return s.accept(match, 1.0)
	}

	// Step 2: keyword overlap over the most-trusted candidates.
	tokens := utils.ExtractKeywords(userMessage)
	candidates, err := s.dbStore.SearchFeedbackByKeywords(botID, tokens, maxKeywordCandidates)
	if err != nil {
		return nil, StorageError(err, "feedback keyword search failed")
	}

	var best *store.FeedbackRecord
	bestScore := 0.0
	for i := range candidates {
		score := utils.OverlapScore(tokens, candidates[i].SimilarityKeywords)
		// Strictly greater keeps the earlier (more applied) candidate on ties.
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}

	if best == nil || bestScore < threshold {
		return &BestResponse{Found: false}, nil
	}
	return s.accept(best, bestScore)
}

func (s *FeedbackService) accept(record *store.FeedbackRecord, confidence float64) (*BestResponse, error) {
	if err := s.dbStore.RecordFeedbackUse(record.ID, record.BotID); err != nil {
		return nil, StorageError(err, "failed to record feedback use")
	}
	return &BestResponse{
		Found:            true,
		ImprovedResponse: record.ImprovedResponse,
		Confidence:       confidence,
		FeedbackID:       record.ID,
	}, nil
}

// ApplyFeedback promotes a pending correction to applied, scoped to the
// owning bot. Ids from another bot fail with a not-found error.
func (s *FeedbackService) ApplyFeedback(feedbackID, botID string) (*store.FeedbackRecord, error) {
	if strings.TrimSpace(feedbackID) == "" {
		return nil, ValidationError("feedbackId is required")
	}

	record, err := s.dbStore.PromoteFeedback(feedbackID, botID)
	if err != nil {
		return nil, StorageError(err, "failed to apply feedback")
	}
	if record == nil {
		return nil, NotFoundError("feedback %s not found for bot %s", feedbackID, botID)
	}
	return record, nil
}

// GetStats aggregates a bot's feedback records. Pure read.
func (s *FeedbackService) GetStats(botID string) (*store.FeedbackStats, error) {
	stats, err := s.dbStore.FeedbackStatsByBot(botID)
	if err != nil {
		return nil, StorageError(err, "failed to aggregate feedback stats")
	}
	return stats, nil
}

// CreateFeedback records a new pending correction from the review screen.
func (s *FeedbackService) CreateFeedback(record *store.FeedbackRecord) error {
	if strings.TrimSpace(record.UserMessageContext) == "" {
		return ValidationError("userMessageContext is required")
	}
	if strings.TrimSpace(record.ImprovedResponse) == "" {
		return ValidationError("improvedResponse is required")
	}
	if err := s.dbStore.CreateFeedback(record); err != nil {
		return StorageError(err, "failed to create feedback")
	}
	return nil
}

// ListFeedback returns a bot's records for the review screen, optionally
// filtered by status.
func (s *FeedbackService) ListFeedback(botID, status string) ([]store.FeedbackRecord, error) {
	if status != "" && status != store.FeedbackPending && status != store.FeedbackApplied && status != store.FeedbackRejected {
		return nil, ValidationError("invalid status %q", status)
	}
	records, err := s.dbStore.ListFeedbackByBot(botID, status)
	if err != nil {
		return nil, StorageError(err, "failed to list feedback")
	}
	return records, nil
}
