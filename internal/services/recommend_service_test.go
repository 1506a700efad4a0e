package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/internal/models"
	"ledgerd/internal/structures"
	"ledgerd/internal/testutil"
)

func seedLedger(months map[string]models.ActivityData) *testutil.MockLedgerService {
	ledger := testutil.NewMockLedgerService()
	for key, data := range months {
		ledger.Months[key] = data
	}
	return ledger
}

func newRecommender(conf *structures.Config, ledger *testutil.MockLedgerService, now time.Time) *RecommendService {
	rs := NewRecommendService(conf, &testutil.MockLogger{}, ledger).(*RecommendService)
	rs.nowFunc = func() time.Time { return now }
	return rs
}

func recentKey(now time.Time) string {
	return models.MonthKey(now.Year(), int(now.Month()))
}

func TestRecommend_ExactDescriptionMatch(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.Local)
	ledger := seedLedger(map[string]models.ActivityData{
		recentKey(now): {
			10: {Activities: []models.ActivityRecord{
				{Icon: "🍚", Title: "餐饮", Description: "午饭"},
				{Icon: "🚇", Title: "交通", Description: "地铁"},
			}},
		},
	})
	rs := newRecommender(testConfig(), ledger, now)

	suggestion := rs.Recommend("午饭")

	require.NotNil(t, suggestion)
	assert.Equal(t, "🍚", suggestion.Icon)
	assert.Equal(t, "餐饮", suggestion.Title)
	assert.InDelta(t, 1.0, suggestion.Confidence, 0.001)
	assert.Equal(t, 1, suggestion.Matches)
}

func TestRecommend_EmptyNote(t *testing.T) {
	rs := newRecommender(testConfig(), testutil.NewMockLedgerService(), time.Now())

	assert.Nil(t, rs.Recommend(""))
	assert.Nil(t, rs.Recommend("   "))
}

func TestRecommend_NoHistory(t *testing.T) {
	rs := newRecommender(testConfig(), testutil.NewMockLedgerService(), time.Now())

	assert.Nil(t, rs.Recommend("午饭"))
}

func TestRecommend_BelowThreshold(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.Local)
	ledger := seedLedger(map[string]models.ActivityData{
		recentKey(now): {
			5: {Activities: []models.ActivityRecord{
				{Icon: "🍚", Title: "餐饮", Description: "和朋友吃了一顿很丰盛的晚饭"},
			}},
		},
	})
	conf := testConfig()
	conf.Recommend.Threshold = 0.9
	rs := newRecommender(conf, ledger, now)

	assert.Nil(t, rs.Recommend("买书"))
}

func TestRecommend_SkipsUncategorizedAndEmptyDescriptions(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.Local)
	ledger := seedLedger(map[string]models.ActivityData{
		recentKey(now): {
			5: {Activities: []models.ActivityRecord{
				{Icon: "❓", Title: models.UncategorizedLabel, Description: "午饭"},
				{Icon: "🍚", Title: "餐饮", Description: ""},
			}},
		},
	})
	rs := newRecommender(testConfig(), ledger, now)

	assert.Nil(t, rs.Recommend("午饭"))
}

func TestRecommend_RecentRecordsOutweighOld(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	ledger := seedLedger(map[string]models.ActivityData{
		// one year old: decayed to the floor
		"2024-06": {
			10: {Activities: []models.ActivityRecord{
				{Icon: "🛒", Title: "购物", Description: "超市"},
			}},
		},
		recentKey(now): {
			10: {Activities: []models.ActivityRecord{
				{Icon: "🍚", Title: "餐饮", Description: "超市"},
			}},
		},
	})
	conf := testConfig()
	conf.Recommend.Threshold = 0.1
	rs := newRecommender(conf, ledger, now)

	suggestion := rs.Recommend("超市")

	require.NotNil(t, suggestion)
	assert.Equal(t, "餐饮", suggestion.Title)
}

func TestRecommend_AggregatesRepeatedPairs(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.Local)
	ledger := seedLedger(map[string]models.ActivityData{
		recentKey(now): {
			3: {Activities: []models.ActivityRecord{
				{Icon: "🍚", Title: "餐饮", Description: "午饭"},
			}},
			4: {Activities: []models.ActivityRecord{
				{Icon: "🍚", Title: "餐饮", Description: "午饭"},
			}},
		},
	})
	rs := newRecommender(testConfig(), ledger, now)

	suggestion := rs.Recommend("午饭")

	require.NotNil(t, suggestion)
	assert.Equal(t, 2, suggestion.Matches)
}

func TestSimilarity_SubstringAndOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("taxi", tokenize("taxi"), "taxi"), 0.001)
	assert.Greater(t, similarity("taxi home", tokenize("taxi home"), "taxi"), 0.0)
	assert.Equal(t, 0.0, similarity("book", tokenize("book"), "taxi"))
}

func TestTokenize_SplitsCJKIntoCharacters(t *testing.T) {
	assert.Equal(t, []string{"午", "饭"}, tokenize("午饭"))
	assert.Equal(t, []string{"taxi", "home"}, tokenize("Taxi, home!"))
}

func TestRecencyWeight_Bounds(t *testing.T) {
	assert.Equal(t, 1.0, recencyWeight(24*time.Hour))
	assert.Equal(t, 1.0, recencyWeight(recentWindow))
	assert.Equal(t, decayFloor, recencyWeight(recentWindow+decaySpan))
	mid := recencyWeight(recentWindow + decaySpan/2)
	assert.Greater(t, mid, decayFloor)
	assert.Less(t, mid, 1.0)
}

func TestParseMonthKey(t *testing.T) {
	year, month, ok := parseMonthKey("2025-03")
	require.True(t, ok)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 3, month)

	_, _, ok = parseMonthKey("garbage")
	assert.False(t, ok)
	_, _, ok = parseMonthKey("2025-13")
	assert.False(t, ok)
}
