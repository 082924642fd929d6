package whisper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/divyashie/openmeet/internal/session"
)

// segmentLine matches whisper.cpp's default stdout format:
// [00:00:00.000 --> 00:00:04.280]   text
var segmentLine = regexp.MustCompile(
	`^\[(\d{2}):(\d{2}):(\d{2})\.(\d{3}) --> (\d{2}):(\d{2}):(\d{2})\.(\d{3})\]\s*(.*)$`)

// parseSegments extracts timestamped segments from whisper.cpp stdout.
// Times are relative to the start of the input file. Blank-text and
// bracketed non-speech markers like [BLANK_AUDIO] are skipped.
func parseSegments(out string) []session.TranscriptSegment {
	var segments []session.TranscriptSegment
	for _, line := range strings.Split(out, "\n") {
		m := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[9])
		if text == "" || isNonSpeech(text) {
			continue
		}
		segments = append(segments, session.TranscriptSegment{
			Start: parseTimestamp(m[1], m[2], m[3], m[4]),
			End:   parseTimestamp(m[5], m[6], m[7], m[8]),
			Text:  text,
		})
	}
	return segments
}

func parseTimestamp(h, m, s, ms string) time.Duration {
	hours, _ := strconv.Atoi(h)
	mins, _ := strconv.Atoi(m)
	secs, _ := strconv.Atoi(s)
	millis, _ := strconv.Atoi(ms)
	return time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute +
		time.Duration(secs)*time.Second +
		time.Duration(millis)*time.Millisecond
}

func isNonSpeech(text string) bool {
	return strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")
}
