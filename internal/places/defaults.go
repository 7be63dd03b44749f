package places

import "strings"

var imageCategories = []struct {
	name     string
	keywords []string
}{
	{"ocean", []string{"ocean", "sea", "pacific", "atlantic"}},
	{"mountain", []string{"mountain", "mount", "mt"}},
	{"desert", []string{"desert", "sahara"}},
	{"forest", []string{"forest", "jungle"}},
	{"city", []string{"city", "capital"}},
}

// DefaultImageFor picks a bundled placeholder image by keyword. Keywords match as
// substrings, case-insensitively, and categories are tried in order.
func DefaultImageFor(term string) string {
	lower := strings.ToLower(term)
	for _, c := range imageCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return imagePath(c.name)
			}
		}
	}
	return imagePath("globe")
}

func imagePath(category string) string {
	return "/static/images/" + category + ".jpg"
}
