package core

import "github.com/google/uuid"

// DefaultUserID owns the sample data when no user is configured.
const DefaultUserID = "default_user"

type sampleCategory struct {
	name, color, emoji string
}

var sampleCategories = []sampleCategory{
	{"food", "#FFB871", "🍙"},
	{"transport", "#3A4F7A", "🚌"},
	{"culture", "#A66DD4", "🎬"},
	{"shopping", "#2A936D", "🛍️"},
	{"travel", "#89E3D0", "✈️"},
	{"health", "#FF9AA2", "💊"},
	{"study", "#4B0082", "📚"},
	{"gifts", "#FDD835", "🎁"},
	{"exercise", "#00C853", "🏋️‍♀️"},
	{"pets", "#FFAB91", "🐶"},
}

// SampleCategories returns the starter categories for userID, sentinel last.
// Each call produces fresh IDs.
func SampleCategories(userID string) []Category {
	out := make([]Category, 0, len(sampleCategories)+1)
	for _, s := range sampleCategories {
		out = append(out, Category{
			ID:     uuid.New(),
			UserID: userID,
			Name:   s.name,
			Color:  s.color,
			Emoji:  s.emoji,
		})
	}
	return append(out, NewSentinelCategory(userID))
}
