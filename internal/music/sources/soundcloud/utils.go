package soundcloud

import (
	"encoding/json"
	"fmt"
	"strings"
)

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

type ytdlpInfo struct {
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
}

// parseInfo reads the title out of yt-dlp's -j output.
func parseInfo(out []byte) (ytdlpInfo, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return info, fmt.Errorf("yt-dlp json: %w", err)
	}
	if info.Title == "" {
		info.Title = "Unknown Title"
	}
	return info, nil
}
