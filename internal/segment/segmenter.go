// Package segment turns a sentence and its word timings into per-symbol lip-sync segments.
// Word durations are spread evenly over the letters and digraphs of each word, and the
// last word reserves one extra beat for the return to the rest pose.
package segment

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/normanking/cortexlipsync/internal/weights"
)

var ErrInput = errors.New("invalid speak input")

// PayloadSeparator splits the sentence from its word end times in a speak payload.
const PayloadSeparator = "###"

// Segment is one symbol held for DurationMs milliseconds.
type Segment struct {
	Symbol     string
	DurationMs float64
}

// Utterance is the ordered segment sequence for one sentence.
type Utterance []Segment

// TotalMs returns the planned length of the utterance.
func (u Utterance) TotalMs() float64 {
	var total float64
	for _, s := range u {
		total += s.DurationMs
	}
	return total
}

// Symbols lists the segment symbols in order.
func (u Utterance) Symbols() []string {
	out := make([]string, len(u))
	for i, s := range u {
		out[i] = s.Symbol
	}
	return out
}

// digraphPrefixes are the letters that merge with a following H.
var digraphPrefixes = map[byte]bool{'W': true, 'C': true, 'T': true, 'S': true}

// Normalize upper-cases the sentence, strips everything but A-Z and spaces, and
// splits it into words.
func Normalize(sentence string) []string {
	upper := strings.ToUpper(sentence)

	var sb strings.Builder
	sb.Grow(len(upper))
	for i := 0; i < len(upper); i++ {
		ch := upper[i]
		if ch == ' ' || (ch >= 'A' && ch <= 'Z') {
			sb.WriteByte(ch)
		}
	}

	return strings.Fields(sb.String())
}

// Tokenize splits a normalized word into symbols, folding WH, CH, TH and SH into one.
func Tokenize(word string) []string {
	symbols := make([]string, 0, len(word))
	for i := 0; i < len(word); i++ {
		if i+1 < len(word) && word[i+1] == 'H' && digraphPrefixes[word[i]] {
			symbols = append(symbols, word[i:i+2])
			i++
			continue
		}
		symbols = append(symbols, word[i:i+1])
	}
	return symbols
}

// Build segments sentence using one end time (in seconds) per word.
func Build(sentence string, wordEndTimes []float64) (Utterance, error) {
	words := Normalize(sentence)
	if len(words) != len(wordEndTimes) {
		return nil, fmt.Errorf("%w: %d words but %d timestamps", ErrInput, len(words), len(wordEndTimes))
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: sentence has no words", ErrInput)
	}
	if err := checkEndTimes(wordEndTimes); err != nil {
		return nil, err
	}

	out := make(Utterance, 0, len(sentence)+1)
	prevEnd := 0.0
	for i, word := range words {
		symbols := Tokenize(word)
		wordMs := (wordEndTimes[i] - prevEnd) * 1000
		prevEnd = wordEndTimes[i]

		last := i == len(words)-1
		slots := len(symbols)
		if last {
			slots++
		}
		symbolMs := wordMs / float64(slots)

		for _, sym := range symbols {
			out = append(out, Segment{Symbol: sym, DurationMs: symbolMs})
		}
		if last {
			out = append(out, Segment{Symbol: weights.Silence, DurationMs: symbolMs})
		}
	}

	return out, nil
}

// ParsePayload splits "<sentence>###<t1,t2,...>" into the sentence and its word end
// times. Times are seconds in invariant decimal notation and must not decrease.
func ParsePayload(payload string) (string, []float64, error) {
	sentence, joined, ok := strings.Cut(payload, PayloadSeparator)
	if !ok {
		return "", nil, fmt.Errorf("%w: missing %q separator", ErrInput, PayloadSeparator)
	}

	joined = strings.TrimSpace(joined)
	if joined == "" {
		return sentence, nil, nil
	}

	parts := strings.Split(joined, ",")
	times := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: timestamp %d: %v", ErrInput, i, err)
		}
		times[i] = v
	}
	if err := checkEndTimes(times); err != nil {
		return "", nil, err
	}

	return sentence, times, nil
}

// checkEndTimes requires finite word end times that start at or after zero and never
// decrease, so every derived duration is finite and non-negative.
func checkEndTimes(times []float64) error {
	prev := 0.0
	for i, v := range times {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: timestamp %d is not finite", ErrInput, i)
		}
		if v < prev {
			return fmt.Errorf("%w: timestamp %d (%g) is earlier than %g", ErrInput, i, v, prev)
		}
		prev = v
	}
	return nil
}

// FromPayload parses and segments a speak payload in one step.
func FromPayload(payload string) (Utterance, error) {
	sentence, times, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	return Build(sentence, times)
}
