package narrate

import (
	"strings"
	"unicode/utf8"
)

// MaxChunkChars is the longest text a single speech request accepts.
const MaxChunkChars = 100

// Chunks splits text into pieces of at most limit runes, breaking on
// whitespace. Words longer than limit are split mid-word.
func Chunks(text string, limit int) []string {
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if n > 0 {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, word := range strings.Fields(text) {
		wn := utf8.RuneCountInString(word)
		for wn > limit {
			flush()
			r := []rune(word)
			out = append(out, string(r[:limit]))
			word = string(r[limit:])
			wn -= limit
		}
		if n > 0 && n+1+wn > limit {
			flush()
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(word)
		n += wn
		if strings.ContainsAny(word[len(word)-1:], ".!?") && n >= limit/2 {
			flush()
		}
	}
	flush()
	return out
}
