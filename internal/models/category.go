package models

// Visibility flag values used by the remote category table.
const (
	CategoryShown  = "是"
	CategoryHidden = "否"
)

// UncategorizedLabel is the sentinel title excluded from recommendation
// candidacy.
const UncategorizedLabel = "未分类"

// Category is a user-defined activity classification, fetched once per
// process lifetime and refreshed only on explicit request.
type Category struct {
	ID       string `json:"id"`
	Icon     string `json:"icon"`
	Name     string `json:"name"`
	RecordID string `json:"record_id"`
	IsShow   string `json:"isShow"`
}

// Hidden reports whether the category's icon is suppressed from calendar
// badges. Records of a hidden category are still cached and listed.
func (c Category) Hidden() bool {
	return c.IsShow == CategoryHidden
}

// HiddenIcons collects the icons of all hidden categories.
func HiddenIcons(categories []Category) map[string]struct{} {
	hidden := make(map[string]struct{})
	for _, c := range categories {
		if c.Hidden() {
			hidden[c.Icon] = struct{}{}
		}
	}
	return hidden
}
