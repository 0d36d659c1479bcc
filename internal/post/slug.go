package post

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the post date format used in front matter and file names.
const DateLayout = "2006-01-02"

// Slug converts a title to a file and URL safe name.
func Slug(title string) string {
	spaced := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, title)
	return strings.ToLower(strings.Join(strings.Fields(spaced), "-"))
}

// FilePath is the post location inside the content repository.
func FilePath(date, slug string) string {
	return fmt.Sprintf("_posts/%s-%s.md", date, slug)
}

// URL is the public address the site generator gives the post.
func URL(siteURL, date, slug string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", date, err)
	}
	return fmt.Sprintf("%s/%d/%02d/%s", strings.TrimRight(siteURL, "/"), d.Year(), int(d.Month()), slug), nil
}
