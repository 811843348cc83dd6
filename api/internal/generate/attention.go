package generate

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/prompt"
)

type attentionWire struct {
	RawText    string       `json:"raw_text"`
	Tokens     []string     `json:"tokens"`
	Weights    []float64    `json:"weights"`
	QueryIndex *int         `json:"query_index"`
	NextToken  ir.NextToken `json:"next_token"`
}

// Attention extracts an attention IR. The example phrase found locally wins
// over the oracle's raw_text; tokens are always the whitespace split of the
// chosen phrase, never of the whole request.
func (g *Generator) Attention(ctx context.Context, text string) (ir.AttentionIR, error) {
	span, found := ExampleSpan(text)
	data := prompt.Data{Text: text}
	if found {
		data.Hint = span
	}
	out, err := g.ask(ctx, prompt.SeqAttention, data, "")
	if err != nil {
		return ir.AttentionIR{}, err
	}
	var w attentionWire
	if err := decode(prompt.SeqAttention, out, &w); err != nil {
		return ir.AttentionIR{}, err
	}

	raw := strings.TrimSpace(w.RawText)
	switch {
	case found:
		raw = span
	case raw == "":
		raw = strings.TrimSpace(text)
	}
	tokens := strings.Fields(raw)
	q := len(tokens) - 1
	if w.QueryIndex != nil {
		q = *w.QueryIndex
	}
	return ir.AttentionIR{
		RawText:    raw,
		Tokens:     tokens,
		Weights:    w.Weights,
		QueryIndex: q,
		NextToken:  w.NextToken,
	}, nil
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{"'", "'"},
	{"“", "”"},
	{"‘", "’"},
	{"`", "`"},
	{"「", "」"},
	{"『", "』"},
	{"[", "]"},
}

// quoteRunes are trimmed off a marker clause.
const quoteRunes = "\"'“”‘’`「」『』[]()"

// Marker phrases meaning "the sentence ..."; the example precedes them.
var sentenceMarkers = []string{"이라는 문장", "라는 문장", "라는문장", "이란 문장"}

// Example phrases are short sentences; a quoted term or a [CLS]-style
// token outside this range is taken only when nothing else is quoted.
const (
	minSpanTokens = 2
	maxSpanTokens = 10
)

// ExampleSpan isolates the example phrase of an attention request: the
// first quoted or bracketed span of 2 to 10 words (else the first quoted
// span), else the clause right before a sentence marker. found is false
// when neither exists; span is then the trimmed text.
func ExampleSpan(text string) (span string, found bool) {
	if s, ok := quotedSpan(text); ok {
		return s, true
	}
	if s, ok := beforeMarker(text); ok {
		return s, true
	}
	return strings.TrimSpace(text), false
}

type quoted struct {
	text string
	at   int
}

func quotedSpan(text string) (string, bool) {
	var all []quoted
	for _, q := range quotePairs {
		all = append(all, quotedBy(text, q)...)
	}
	if len(all) == 0 {
		return "", false
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].at < all[j].at })
	for _, c := range all {
		if n := len(strings.Fields(c.text)); n >= minSpanTokens && n <= maxSpanTokens {
			return c.text, true
		}
	}
	return all[0].text, true
}

// quotedBy lists every non-empty span enclosed by q. A plain single quote
// only opens at a word start and only closes before a non-Latin-letter, so
// apostrophes (don't, it's) are skipped.
func quotedBy(text string, q [2]string) []quoted {
	apostrophe := q[0] == "'"
	var out []quoted
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], q[0])
		if i < 0 {
			break
		}
		i += from
		open := i + len(q[0])
		if apostrophe && !wordStart(text, i) {
			from = open
			continue
		}
		j := closeAt(text, open, q[1], apostrophe)
		if j < 0 {
			break
		}
		if s := strings.TrimSpace(text[open:j]); s != "" {
			out = append(out, quoted{text: s, at: i})
		}
		from = j + len(q[1])
	}
	return out
}

func closeAt(text string, from int, closer string, apostrophe bool) int {
	for k := from; k < len(text); {
		j := strings.Index(text[k:], closer)
		if j < 0 {
			return -1
		}
		j += k
		if !apostrophe || wordEnd(text, j+len(closer)) {
			return j
		}
		k = j + len(closer)
	}
	return -1
}

func wordStart(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// wordEnd accepts Hangul after the quote so '...'라는 closes.
func wordEnd(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	if unicode.Is(unicode.Hangul, r) {
		return true
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func beforeMarker(text string) (string, bool) {
	for _, m := range sentenceMarkers {
		i := strings.Index(text, m)
		if i <= 0 {
			continue
		}
		clause := text[:i]
		if k := strings.LastIndexAny(clause, ".!?:;\n,"); k >= 0 {
			clause = clause[k+1:]
		}
		words := strings.Fields(clause)
		if len(words) == 0 {
			continue
		}
		// Mixed-script requests: keep the trailing run of words without Hangul.
		start := len(words)
		for start > 0 && !hasHangul(words[start-1]) {
			start--
		}
		if start < len(words) {
			words = words[start:]
		}
		span := strings.TrimSpace(strings.Trim(strings.Join(words, " "), quoteRunes))
		if span == "" {
			continue
		}
		return span, true
	}
	return "", false
}

func hasHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
