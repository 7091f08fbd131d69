package engine

import (
	"strings"
	"unicode/utf8"
)

const (
	rewriteMarker = "[REWRITTEN CHAPTER]"
	reviewMarker  = "Provide your refined version:"

	truncationNotice = "\n\n[... text truncated to fit the model input budget ...]"
)

const editorSystem = "You are a professional editor rewriting book chapters in modern English."

const proofreaderSystem = "You are a professional proofreader refining rewritten book chapters."

func rewritePrompt(original string) string {
	var sb strings.Builder
	sb.WriteString("[INSTRUCTIONS]\n")
	sb.WriteString("Rewrite the following book chapter in modern English. Follow these rules:\n")
	sb.WriteString("1. Maintain the original plot, characters, and key details\n")
	sb.WriteString("2. Improve clarity and flow while preserving the author's voice\n")
	sb.WriteString("3. Fix any grammatical errors\n")
	sb.WriteString("4. Keep the same length as the original\n\n")
	sb.WriteString("[ORIGINAL CHAPTER]\n")
	sb.WriteString(original)
	sb.WriteString("\n\n")
	sb.WriteString(rewriteMarker)
	sb.WriteString("\n")
	return sb.String()
}

func reviewPrompt(original, rewritten string) string {
	var sb strings.Builder
	sb.WriteString("Original Chapter:\n")
	sb.WriteString(original)
	sb.WriteString("\n\nRewritten Chapter:\n")
	sb.WriteString(rewritten)
	sb.WriteString("\n\nReview the rewritten chapter for:\n")
	sb.WriteString("1. Grammar and spelling errors\n")
	sb.WriteString("2. Clarity and readability\n")
	sb.WriteString("3. Consistent tone and style\n")
	sb.WriteString("4. Faithfulness to original meaning\n\n")
	sb.WriteString(reviewMarker)
	sb.WriteString("\n")
	return sb.String()
}

// extractAfter returns the text after the last occurrence of marker, or the
// whole output when the model did not echo the marker.
func extractAfter(output, marker string) string {
	if i := strings.LastIndex(output, marker); i >= 0 {
		output = output[i+len(marker):]
	}
	return strings.TrimSpace(output)
}

// truncate cuts s to at most limit runes, appending a notice when it cuts.
func truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	r := []rune(s)
	return string(r[:limit]) + truncationNotice, true
}

// splitBudget shares limit between two inputs. A short input leaves its unused
// share to the other.
func splitBudget(a, b string, limit int) (int, int) {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if limit <= 0 || la+lb <= limit {
		return la, lb
	}
	half := limit / 2
	switch {
	case la <= half:
		return la, limit - la
	case lb <= limit-half:
		return limit - lb, lb
	default:
		return half, limit - half
	}
}
