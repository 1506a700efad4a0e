package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMonthData_GroupsByDay(t *testing.T) {
	records := []RemoteRecord{
		{ID: "r1", Day: 3, Category: "🍚餐饮", Note: "lunch", Amount: decimal.NewFromInt(25)},
		{ID: "r2", Day: 3, Category: "🚇交通", Note: "metro", Amount: decimal.NewFromInt(4)},
		{ID: "r3", Day: 15, Category: "🍚餐饮", Note: "dinner", Amount: decimal.NewFromInt(60)},
	}

	data := BuildMonthData(records, nil)

	require.Len(t, data, 2)
	require.NotNil(t, data[3])
	assert.Equal(t, []string{"🍚", "🚇"}, data[3].Icon)
	require.Len(t, data[3].Activities, 2)
	assert.Equal(t, "餐饮", data[3].Activities[0].Title)
	assert.Equal(t, "🍚", data[3].Activities[0].Icon)
	assert.Equal(t, "lunch", data[3].Activities[0].Description)
	require.NotNil(t, data[15])
	assert.Equal(t, []string{"🍚"}, data[15].Icon)
}

func TestBuildMonthData_DuplicateIconAppearsOnce(t *testing.T) {
	records := []RemoteRecord{
		{ID: "r1", Day: 5, Category: "🍚早餐"},
		{ID: "r2", Day: 5, Category: "🍚晚餐"},
	}

	data := BuildMonthData(records, nil)

	require.NotNil(t, data[5])
	assert.Equal(t, []string{"🍚"}, data[5].Icon)
	assert.Len(t, data[5].Activities, 2)
}

func TestBuildMonthData_SkipsInvalidRows(t *testing.T) {
	records := []RemoteRecord{
		{ID: "no-day", Day: 0, Category: "🍚餐饮"},
		{ID: "day-overflow", Day: 32, Category: "🍚餐饮"},
		{ID: "no-category", Day: 4, Category: ""},
		{ID: "no-emoji", Day: 4, Category: "餐饮"},
		{ID: "ok", Day: 4, Category: "🍚餐饮"},
	}

	data := BuildMonthData(records, nil)

	require.Len(t, data, 1)
	require.Len(t, data[4].Activities, 1)
	assert.Equal(t, "ok", data[4].Activities[0].ID)
}

func TestBuildMonthData_EmptyNoteTolerated(t *testing.T) {
	data := BuildMonthData([]RemoteRecord{{ID: "r1", Day: 1, Category: "🍚餐饮"}}, nil)

	require.NotNil(t, data[1])
	assert.Equal(t, "", data[1].Activities[0].Description)
}

func TestBuildMonthData_HiddenIconSuppressedFromBadges(t *testing.T) {
	hidden := map[string]struct{}{"💊": {}}
	records := []RemoteRecord{
		{ID: "r1", Day: 8, Category: "💊医疗", Note: "pharmacy"},
		{ID: "r2", Day: 8, Category: "🍚餐饮"},
	}

	data := BuildMonthData(records, hidden)

	require.NotNil(t, data[8])
	assert.Equal(t, []string{"🍚"}, data[8].Icon)
	// the hidden activity itself is still listed
	require.Len(t, data[8].Activities, 2)
	assert.Equal(t, "医疗", data[8].Activities[0].Title)
}

func TestBuildMonthData_OnlyFirstEmojiSplitsOff(t *testing.T) {
	data := BuildMonthData([]RemoteRecord{{ID: "r1", Day: 2, Category: "🍚餐饮😊"}}, nil)

	require.NotNil(t, data[2])
	assert.Equal(t, []string{"🍚"}, data[2].Icon)
	assert.Equal(t, "餐饮😊", data[2].Activities[0].Title)
}

func TestDayBucket_RecomputeIcons(t *testing.T) {
	bucket := &DayBucket{
		Icon: []string{"🍚", "🚇"},
		Activities: []ActivityRecord{
			{ID: "r1", Icon: "🚇", Title: "交通"},
		},
	}

	bucket.RecomputeIcons(nil)

	assert.Equal(t, []string{"🚇"}, bucket.Icon)
}

func TestActivityData_CloneIsDeep(t *testing.T) {
	data := BuildMonthData([]RemoteRecord{{ID: "r1", Day: 9, Category: "🍚餐饮"}}, nil)

	clone := data.Clone()
	clone[9].Activities[0].Title = "changed"
	clone[9].Icon = append(clone[9].Icon, "🚇")

	assert.Equal(t, "餐饮", data[9].Activities[0].Title)
	assert.Equal(t, []string{"🍚"}, data[9].Icon)
}

func TestActivityData_CloneDoesNotShareFieldBags(t *testing.T) {
	data := ActivityData{
		9: {Activities: []ActivityRecord{{
			ID:     "r1",
			Fields: map[string]json.RawMessage{"备注": json.RawMessage(`"old"`)},
		}}},
	}

	clone := data.Clone()
	clone[9].Activities[0].Fields["备注"] = json.RawMessage(`"changed"`)
	clone[9].Activities[0].Fields["金额"] = json.RawMessage(`42`)

	original := data[9].Activities[0].Fields
	assert.Equal(t, json.RawMessage(`"old"`), original["备注"])
	assert.NotContains(t, original, "金额")
}

func TestDayBucket_Total(t *testing.T) {
	bucket := &DayBucket{Activities: []ActivityRecord{
		{Amount: decimal.NewFromFloat(12.5)},
		{Amount: decimal.NewFromFloat(7.5)},
	}}

	assert.True(t, bucket.Total().Equal(decimal.NewFromInt(20)))
}

func TestHiddenIcons(t *testing.T) {
	categories := []Category{
		{Icon: "🍚", Name: "餐饮", IsShow: CategoryShown},
		{Icon: "💊", Name: "医疗", IsShow: CategoryHidden},
	}

	hidden := HiddenIcons(categories)

	_, ok := hidden["💊"]
	assert.True(t, ok)
	_, ok = hidden["🍚"]
	assert.False(t, ok)
}
