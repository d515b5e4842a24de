// internal/healer/key.go
package healer

import (
	"fmt"
	"net/url"

	"github.com/sk3lla/mend/api/schemas"
)

// Key computes the cache key for one (action, page, description) triple.
// Query string and fragment are stripped so the same logical page under
// different querystrings shares an entry.
func Key(action schemas.ActionKind, rawURL, description string) string {
	location := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		u.RawFragment = ""
		location = u.String()
	}
	return fmt.Sprintf("%s::%s::%s", action, location, description)
}
