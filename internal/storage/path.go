package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const filenameDateLayout = "20060102"

// ImagePath returns the object key for an uploaded file:
// images/{yyyy}/{mm}/{fileName}. The month comes from a YYYYMMDD_ prefix on
// the file name when there is one, otherwise from fallback.
func ImagePath(fileName string, fallback time.Time) string {
	date := fallback
	if prefix, _, ok := strings.Cut(fileName, "_"); ok {
		if parsed, err := time.Parse(filenameDateLayout, prefix); err == nil {
			date = parsed
		}
	}
	return fmt.Sprintf("images/%d/%02d/%s", date.Year(), int(date.Month()), path.Base(fileName))
}
