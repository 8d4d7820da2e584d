package chatsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/dto"
)

func TestGroupByDaySplitsYesterdayAndToday(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	entries := []Entry{
		{Message: dto.ChatMessage{ID: "t1", ConversationID: testConversation, Timestamp: time.Date(2026, 3, 10, 8, 15, 0, 0, loc)}},
		{Message: dto.ChatMessage{ID: "y1", ConversationID: testConversation, Timestamp: time.Date(2026, 3, 9, 21, 0, 0, 0, loc)}},
		{Message: dto.ChatMessage{ID: "y2", ConversationID: testConversation, Timestamp: time.Date(2026, 3, 9, 23, 59, 0, 0, loc)}},
		{Message: dto.ChatMessage{ID: "t0", ConversationID: testConversation, Timestamp: time.Date(2026, 3, 10, 0, 1, 0, 0, loc)}},
	}

	groups := GroupByDay(entries, now, loc)

	require.Len(t, groups, 2)
	assert.Equal(t, "Yesterday", groups[0].Label)
	assert.Equal(t, "Today", groups[1].Label)
	assert.Equal(t, []string{"y1", "y2"}, groupIDs(groups[0]))
	assert.Equal(t, []string{"t0", "t1"}, groupIDs(groups[1]))
}

func TestGroupByDayUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	// 19:00 UTC on the 9th is already the 10th in IST
	entries := []Entry{{Message: dto.ChatMessage{ID: "m", Timestamp: time.Date(2026, 3, 9, 19, 0, 0, 0, time.UTC)}}}

	groups := GroupByDay(entries, now, loc)

	require.Len(t, groups, 1)
	assert.Equal(t, "Today", groups[0].Label)
}

func TestGroupByDayOlderDatesUseFullDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	entries := []Entry{{Message: dto.ChatMessage{ID: "old", Timestamp: time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)}}}

	groups := GroupByDay(entries, now, time.UTC)

	require.Len(t, groups, 1)
	assert.Equal(t, "February 28, 2026", groups[0].Label)
	assert.Empty(t, GroupByDay(nil, now, time.UTC))
}

func groupIDs(g DayGroup) []string {
	ids := make([]string, 0, len(g.Entries))
	for _, e := range g.Entries {
		ids = append(ids, e.Message.ID)
	}
	return ids
}
