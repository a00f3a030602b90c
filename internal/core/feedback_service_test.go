package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrofnts/konver-app-sub001/internal/store"
)

func setupFeedbackService(t *testing.T) (*FeedbackService, *store.SQLiteStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	dbStore, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbStore.Close() })

	bot := &store.Bot{Name: "test-bot", Active: true}
	require.NoError(t, dbStore.CreateBot(bot))

	return NewFeedbackService(dbStore), dbStore, bot.ID
}

func seedApplied(t *testing.T, s *store.SQLiteStore, botID, context, improved string, keywords []string) *store.FeedbackRecord {
	t.Helper()
	record := &store.FeedbackRecord{
		BotID:              botID,
		UserMessageContext: context,
		ImprovedResponse:   improved,
		Status:             store.FeedbackApplied,
		SimilarityKeywords: keywords,
	}
	require.NoError(t, s.CreateFeedback(record))
	return record
}

func TestSearchFeedbackRequiresMessage(t *testing.T) {
	svc, _, botID := setupFeedbackService(t)

	_, err := svc.SearchFeedback(botID, "   ", 5)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSearchFeedbackEmptyStore(t *testing.T) {
	svc, _, botID := setupFeedbackService(t)

	results, err := svc.SearchFeedback(botID, "anything at all", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchFeedbackPrimaryPass(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	record := seedApplied(t, dbStore, botID, "what is the premium plan", "R$99", nil)

	results, err := svc.SearchFeedback(botID, "premium plan?!", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, record.ID, results[0].ID)
}

func TestSearchFeedbackFallbackPass(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	// No containment: the stored context shares keywords only.
	record := seedApplied(t, dbStore, botID, "premium subscription cost", "R$99", []string{"premium", "cost"})

	results, err := svc.SearchFeedback(botID, "how much does premium cost monthly", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, record.ID, results[0].ID)
}

func TestSearchFeedbackIdempotent(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	seedApplied(t, dbStore, botID, "premium plan price", "a", nil)
	seedApplied(t, dbStore, botID, "premium plan benefits", "b", nil)

	first, err := svc.SearchFeedback(botID, "premium plan", 5)
	require.NoError(t, err)
	second, err := svc.SearchFeedback(botID, "premium plan", 5)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestSearchFeedbackNoDuplicates(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	// Qualifies under both passes: containment and keyword overlap.
	record := seedApplied(t, dbStore, botID, "premium plan", "a", []string{"premium", "plan"})

	results, err := svc.SearchFeedback(botID, "premium plan", 5)
	require.NoError(t, err)

	seen := 0
	for _, r := range results {
		if r.ID == record.ID {
			seen++
		}
	}
	assert.Equal(t, 1, seen)
}

func TestSearchFeedbackRespectsLimit(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	for i := 0; i < 8; i++ {
		seedApplied(t, dbStore, botID, "premium plan question", "a", nil)
	}

	results, err := svc.SearchFeedback(botID, "premium plan", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// Default limit kicks in when none is given.
	results, err = svc.SearchFeedback(botID, "premium plan", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)
}

func TestGetBestResponseRequiresMessage(t *testing.T) {
	svc, _, botID := setupFeedbackService(t)

	_, err := svc.GetBestResponse(botID, "", 0)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestGetBestResponseEmptyStore(t *testing.T) {
	svc, _, botID := setupFeedbackService(t)

	result, err := svc.GetBestResponse(botID, "anything", 0)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestGetBestResponseExactMatchConfidenceOne(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	record := seedApplied(t, dbStore, botID, "what is the premium plan price", "R$99 per month", nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, dbStore.RecordFeedbackUse(record.ID, botID))
	}

	// The query is an exact substring of the stored context: accepted with
	// confidence 1.0 regardless of threshold, and the counter moves 5 -> 6.
	result, err := svc.GetBestResponse(botID, "premium plan price", 0.99)
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, record.ID, result.FeedbackID)
	assert.Equal(t, "R$99 per month", result.ImprovedResponse)

	fetched, err := dbStore.GetFeedbackByID(record.ID, botID)
	require.NoError(t, err)
	assert.Equal(t, 6, fetched.TimesApplied)
	assert.NotNil(t, fetched.LastAppliedAt)
}

func TestGetBestResponseScoringBoundary(t *testing.T) {
	// tokens {alpha,bravo,charlie} vs keywords {alpha,bravo,xray,yankee}:
	// overlap=2, score = 2/max(3,4) = 0.5.
	const message = "alpha bravo charlie"
	keywords := []string{"alpha", "bravo", "xray", "yankee"}

	t.Run("accepted at threshold 0.5", func(t *testing.T) {
		svc, dbStore, botID := setupFeedbackService(t)
		record := seedApplied(t, dbStore, botID, "completely unrelated context", "improved", keywords)

		result, err := svc.GetBestResponse(botID, message, 0.5)
		require.NoError(t, err)
		require.True(t, result.Found)
		assert.InDelta(t, 0.5, result.Confidence, 1e-9)
		assert.Equal(t, record.ID, result.FeedbackID)
	})

	t.Run("rejected at threshold 0.51", func(t *testing.T) {
		svc, dbStore, botID := setupFeedbackService(t)
		record := seedApplied(t, dbStore, botID, "completely unrelated context", "improved", keywords)

		result, err := svc.GetBestResponse(botID, message, 0.51)
		require.NoError(t, err)
		assert.False(t, result.Found)

		// Rejection must not touch the counter.
		fetched, err := dbStore.GetFeedbackByID(record.ID, botID)
		require.NoError(t, err)
		assert.Zero(t, fetched.TimesApplied)
	})
}

func TestGetBestResponseKeywordPassPicksHighestScore(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	weak := seedApplied(t, dbStore, botID, "unrelated one", "weak", []string{"alpha", "xray", "yankee", "zulu"})
	strong := seedApplied(t, dbStore, botID, "unrelated two", "strong", []string{"alpha", "bravo", "charlie"})

	result, err := svc.GetBestResponse(botID, "alpha bravo charlie", 0.6)
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, strong.ID, result.FeedbackID)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	_ = weak
}

func TestGetBestResponseIgnoresPendingRecords(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	record := &store.FeedbackRecord{
		BotID:              botID,
		UserMessageContext: "premium plan price",
		ImprovedResponse:   "x",
		Status:             store.FeedbackPending,
	}
	require.NoError(t, dbStore.CreateFeedback(record))

	result, err := svc.GetBestResponse(botID, "premium plan price", 0)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestGetBestResponseTenantIsolation(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	otherBot := &store.Bot{Name: "other", Active: true}
	require.NoError(t, dbStore.CreateBot(otherBot))
	seedApplied(t, dbStore, otherBot.ID, "premium plan price", "other tenant answer", nil)

	result, err := svc.GetBestResponse(botID, "premium plan price", 0)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestApplyFeedback(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	record := &store.FeedbackRecord{
		BotID:              botID,
		UserMessageContext: "ctx",
		ImprovedResponse:   "x",
	}
	require.NoError(t, dbStore.CreateFeedback(record))

	applied, err := svc.ApplyFeedback(record.ID, botID)
	require.NoError(t, err)
	assert.Equal(t, store.FeedbackApplied, applied.Status)
}

func TestApplyFeedbackNotFound(t *testing.T) {
	svc, _, botID := setupFeedbackService(t)

	_, err := svc.ApplyFeedback("00000000-0000-0000-0000-000000000000", botID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestApplyFeedbackWrongBot(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	otherBot := &store.Bot{Name: "other", Active: true}
	require.NoError(t, dbStore.CreateBot(otherBot))
	record := &store.FeedbackRecord{BotID: otherBot.ID, UserMessageContext: "ctx", ImprovedResponse: "x"}
	require.NoError(t, dbStore.CreateFeedback(record))

	_, err := svc.ApplyFeedback(record.ID, botID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	// The other tenant's record is untouched.
	fetched, err := dbStore.GetFeedbackByID(record.ID, otherBot.ID)
	require.NoError(t, err)
	assert.Equal(t, store.FeedbackPending, fetched.Status)
}

func TestGetStats(t *testing.T) {
	svc, dbStore, botID := setupFeedbackService(t)

	applied := seedApplied(t, dbStore, botID, "a", "x", nil)
	require.NoError(t, dbStore.RecordFeedbackUse(applied.ID, botID))

	pending := &store.FeedbackRecord{BotID: botID, UserMessageContext: "p", ImprovedResponse: "x"}
	require.NoError(t, dbStore.CreateFeedback(pending))

	stats, err := svc.GetStats(botID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.TotalApplications)
	assert.Equal(t, 1, stats.ByStatus[store.FeedbackApplied])
	assert.Equal(t, 1, stats.ByStatus[store.FeedbackPending])
}

func TestListFeedbackRejectsUnknownStatus(t *testing.T) {
	svc, _, botID := setupFeedbackService(t)

	_, err := svc.ListFeedback(botID, "bogus")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}
