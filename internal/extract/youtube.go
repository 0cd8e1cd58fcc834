package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/shorts/)([A-Za-z0-9_-]{11})`),
}

// VideoID pulls the 11-character video id out of the common YouTube URL
// shapes (watch, youtu.be, embed, shorts).
func VideoID(rawURL string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("no video id found in url: %s", rawURL)
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// FromYouTube fetches the transcript of a video from its caption tracks.
// Manually-authored English captions win over auto-generated ones.
func (e *Extractor) FromYouTube(ctx context.Context, rawURL string) (string, error) {
	id, err := VideoID(rawURL)
	if err != nil {
		return "", err
	}

	page, err := e.fetch(ctx, "https://www.youtube.com/watch?v="+id)
	if err != nil {
		return "", err
	}

	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return "", err
	}

	track := pickCaptionTrack(tracks)
	if track == nil {
		return "", fmt.Errorf("video %s has no caption tracks", id)
	}

	xmlBody, err := e.fetch(ctx, track.BaseURL)
	if err != nil {
		return "", fmt.Errorf("fetch captions: %w", err)
	}

	transcript := stripCaptionXML(xmlBody)
	if transcript == "" {
		return "", fmt.Errorf("video %s captions are empty", id)
	}
	return transcript, nil
}

var captionTracksRe = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

func parseCaptionTracks(page string) ([]captionTrack, error) {
	m := captionTracksRe.FindStringSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("no captions available for video")
	}

	var tracks []captionTrack
	if err := json.Unmarshal([]byte(m[1]), &tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}
	return tracks, nil
}

func pickCaptionTrack(tracks []captionTrack) *captionTrack {
	var auto *captionTrack
	for i := range tracks {
		t := &tracks[i]
		if !strings.HasPrefix(t.LanguageCode, "en") {
			continue
		}
		if t.Kind == "asr" {
			if auto == nil {
				auto = t
			}
			continue
		}
		return t
	}
	if auto != nil {
		return auto
	}
	if len(tracks) > 0 {
		return &tracks[0]
	}
	return nil
}

var captionTagRe = regexp.MustCompile(`<[^>]+>`)

func stripCaptionXML(body string) string {
	// The timedtext format is a flat list of <text> elements; dropping the
	// tags and unescaping entities leaves the spoken words.
	text := captionTagRe.ReplaceAllString(body, " ")
	text = html.UnescapeString(html.UnescapeString(text))
	return strings.Join(strings.Fields(text), " ")
}
