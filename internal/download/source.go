package download

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Source identifies what to download.
type Source struct {
	TrackID string
	URL     string
}

// ResolveSource accepts a bare video id or a watch, short, or youtu.be URL
// and returns the track id plus the URL handed to yt-dlp.
func ResolveSource(arg, urlTemplate string) (Source, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Source{}, fmt.Errorf("empty source")
	}
	if videoIDPattern.MatchString(arg) {
		return Source{TrackID: arg, URL: fmt.Sprintf(urlTemplate, arg)}, nil
	}

	parsed, err := url.Parse(arg)
	if err != nil || parsed.Host == "" {
		return Source{}, fmt.Errorf("source %q is neither a video id nor a URL", arg)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(parsed.Path, "/")
	case "youtube.com":
		switch {
		case parsed.Path == "/watch":
			id = parsed.Query().Get("v")
		case strings.HasPrefix(parsed.Path, "/shorts/"), strings.HasPrefix(parsed.Path, "/live/"):
			parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
			if len(parts) >= 2 {
				id = parts[1]
			}
		}
	}
	if !videoIDPattern.MatchString(id) {
		return Source{}, fmt.Errorf("no video id in %q", arg)
	}
	return Source{TrackID: id, URL: fmt.Sprintf(urlTemplate, id)}, nil
}
