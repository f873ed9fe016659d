package server

import (
	"strings"

	"github.com/go-go-golems/tablebot/pkg/restaurants/toolbox"
)

// SplitTrailer separates the conversational text of a reply from the restaurant IDs
// listed after the trailer marker. IDs are trimmed and empty entries dropped. A reply
// without the marker is returned unchanged with no IDs.
func SplitTrailer(text string) (string, []string) {
	ids := []string{}
	idx := strings.Index(text, toolbox.TrailerMarker)
	if idx < 0 {
		return text, ids
	}
	body := strings.TrimSpace(text[:idx])
	rest := text[idx+len(toolbox.TrailerMarker):]
	// a second marker ends the list
	if next := strings.Index(rest, toolbox.TrailerMarker); next >= 0 {
		rest = rest[:next]
	}
	for _, id := range strings.Split(strings.TrimSpace(rest), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return body, ids
}
