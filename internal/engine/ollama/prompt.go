package ollama

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/divyashie/openmeet/internal/errors"
)

// Summary formats. Each selects a different prompt shape over the same
// labeled transcript.
const (
	FormatDetailed  = "detailed"
	FormatBullets   = "bullets"
	FormatExecutive = "executive"
	FormatEmail     = "email"
)

// Formats lists the supported summary formats.
func Formats() []string {
	return []string{FormatDetailed, FormatBullets, FormatExecutive, FormatEmail}
}

// ValidFormat reports whether name is a supported summary format.
func ValidFormat(name string) bool {
	switch name {
	case FormatDetailed, FormatBullets, FormatExecutive, FormatEmail:
		return true
	}
	return false
}

// BuildPrompt assembles the generation prompt for the given format.
func BuildPrompt(format, transcript string, recorded time.Duration) (string, error) {
	header := fmt.Sprintf("The following is a transcript of a %s meeting with speaker labels.\n\n%s\n\n",
		formatDuration(recorded), strings.TrimSpace(transcript))

	switch format {
	case FormatDetailed:
		return header + detailedInstructions, nil
	case FormatBullets:
		return header + bulletsInstructions, nil
	case FormatExecutive:
		return header + executiveInstructions, nil
	case FormatEmail:
		return header + emailInstructions, nil
	default:
		return "", apperrors.Newf(apperrors.ConfigInvalid, "unknown summary format %q", format)
	}
}

const detailedInstructions = `Write a detailed summary of this meeting. Include:
1. Main topics discussed, in order
2. Key points made by each speaker
3. Decisions reached
4. Action items with owners where mentioned
5. Open questions left unresolved

Use the speaker labels from the transcript. Do not invent names or details that are not in the transcript.`

const bulletsInstructions = `Summarize this meeting as concise bullet points. One bullet per topic or decision, at most ten bullets. Start each bullet with a dash. Do not add headings or commentary, only the bullets.`

const executiveInstructions = `Write a one-paragraph executive summary of this meeting for someone who did not attend. Cover what was discussed, what was decided, and what happens next. At most five sentences. No bullet points.`

const emailInstructions = `Write a follow-up email summarizing this meeting, suitable to send to all attendees. Include a one-line subject prefixed with "Subject:", a short recap of what was discussed, decisions made, and a list of action items. Keep a neutral professional tone.`

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "short"
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%d-minute", m)
}
