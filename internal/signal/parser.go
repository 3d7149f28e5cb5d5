// Package signal extracts trade intents from free-form chat text. The
// parser is pure: no I/O, no clock, deterministic output for a given
// input. Most inbound messages are not signals, so a nil result is the
// common case and not an error.
package signal

import (
	"regexp"
	"strconv"
	"strings"
)

// Side of a trade as stated or implied by a signal.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal is the parsed trade intent. Entry is optional: limit signals
// carry a price, market signals either say so explicitly or use a zero
// entry. Side stays empty when the text names no direction; the caller
// infers it from stop placement.
type Signal struct {
	Coin     string
	Entry    float64
	HasEntry bool
	Stop     float64
	Side     Side
	IsMarket bool
	Source   string
}

var (
	coinRe  = regexp.MustCompile(`(?i)(?:COIN:|Токен)\s*\$?\s*([A-Za-z0-9]+)`)
	stopRe  = regexp.MustCompile(`(?i)(?:STOP LOSS|STOP|стоп)[:\s]+([\d.]+)`)
	entryRe = regexp.MustCompile(`(?i)(?:ENTRY:|вход)(.*)`)
	lazyRe  = regexp.MustCompile(`(?i)^\s*([A-Za-z0-9]{2,10})\s+([\d.]+)\s+([\d.]+)`)
	numRe   = regexp.MustCompile(`[\d.]+`)
	dirRe   = regexp.MustCompile(`(?i)\b(LONG|SHORT|BUY|SELL)\b`)
	tagRe   = regexp.MustCompile(`#(\w+)`)
)

// knownSources maps channel phrases to source tags. Checked before
// hashtags; first match wins.
var knownSources = []struct {
	phrase string
	tag    string
}{
	{"binance killers", "#BinanceKillers"},
	{"fed. russian insiders", "#RussianInsiders"},
	{"cornix", "#Cornix"},
}

// Parse extracts a trade signal from text, or returns nil if the text
// does not look like one.
//
// Two shapes are recognized, in order:
//  1. keyword form: a coin marker plus a stop marker, with an optional
//     entry marker whose first two numbers are averaged (range midpoint);
//  2. lazy form: a leading "TOKEN entry stop" line.
func Parse(text string) *Signal {
	var (
		coin     string
		entry    float64
		hasEntry bool
		stop     float64
		hasStop  bool
	)

	if cm := coinRe.FindStringSubmatch(text); cm != nil {
		if sm := stopRe.FindStringSubmatch(text); sm != nil {
			v, err := strconv.ParseFloat(sm[1], 64)
			if err != nil {
				return nil
			}
			coin = cm[1]
			stop = v
			hasStop = true
			if em := entryRe.FindStringSubmatch(text); em != nil {
				segment := em[1]
				// The entry clause ends where a stop marker begins, so
				// "ENTRY: 50000 STOP: 49000" on one line reads as a
				// single entry number.
				if loc := stopRe.FindStringIndex(segment); loc != nil {
					segment = segment[:loc[0]]
				}
				nums := parseNumbers(segment)
				switch {
				case len(nums) >= 2:
					entry = (nums[0] + nums[1]) / 2
					hasEntry = true
				case len(nums) == 1:
					entry = nums[0]
					hasEntry = true
				}
			}
		}
	}

	if coin == "" {
		if lm := lazyRe.FindStringSubmatch(text); lm != nil {
			e, eErr := strconv.ParseFloat(lm[2], 64)
			s, sErr := strconv.ParseFloat(lm[3], 64)
			if eErr == nil && sErr == nil {
				coin = lm[1]
				entry = e
				hasEntry = true
				stop = s
				hasStop = true
			}
		}
	}

	if coin == "" || !hasStop {
		return nil
	}

	sig := &Signal{
		Coin:     strings.ToUpper(coin),
		Entry:    entry,
		HasEntry: hasEntry,
		Stop:     stop,
	}

	switch {
	case hasEntry && entry == 0:
		sig.IsMarket = true
	case !hasEntry:
		sig.IsMarket = hasMarketKeyword(text)
	}

	if dm := dirRe.FindStringSubmatch(text); dm != nil {
		switch strings.ToUpper(dm[1]) {
		case "LONG", "BUY":
			sig.Side = SideLong
		default:
			sig.Side = SideShort
		}
	}

	sig.Source = sourceTag(text)
	return sig
}

func parseNumbers(s string) []float64 {
	var out []float64
	for _, raw := range numRe.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// marketWordRe covers the latin keywords; the cyrillic alias is matched
// separately because \b is ASCII-only in RE2.
var marketWordRe = regexp.MustCompile(`(?i)\b(MARKET|CMP)\b`)

func hasMarketKeyword(text string) bool {
	if marketWordRe.MatchString(text) {
		return true
	}
	return strings.Contains(strings.ToUpper(text), "РЫНОК")
}

func sourceTag(text string) string {
	lower := strings.ToLower(text)
	for _, src := range knownSources {
		if strings.Contains(lower, src.phrase) {
			return src.tag
		}
	}
	if tm := tagRe.FindStringSubmatch(text); tm != nil {
		return "#" + tm[1]
	}
	return "#Manual"
}

// InferSide resolves direction from stop placement: a stop below entry
// implies LONG. Used when the signal names no explicit side.
func InferSide(entry, stop float64) Side {
	if entry > stop {
		return SideLong
	}
	return SideShort
}

// SideConflicts reports whether an explicit side contradicts the stop
// placement (a LONG stop must sit below entry, a SHORT stop above).
func SideConflicts(side Side, entry, stop float64) bool {
	switch side {
	case SideLong:
		return stop >= entry
	case SideShort:
		return stop <= entry
	default:
		return false
	}
}
