// Copyright 2024-2026 Aiku AI

// Package tgmd converts Telegram-flavored markdown to plain text plus
// signal-cli text style ranges. Positions are counted in UTF-16 code units
// over the output text, as required by the Signal protocol.
package tgmd

import (
	"strconv"
	"strings"
)

// Style identifies a signal-cli text style kind.
type Style string

const (
	StyleBold          Style = "BOLD"
	StyleItalic        Style = "ITALIC"
	StyleStrikethrough Style = "STRIKETHROUGH"
	StyleSpoiler       Style = "SPOILER"
	StyleMonospace     Style = "MONOSPACE"
)

// StyleRange describes one styled span over the converted plain text.
// Start and Length are UTF-16 code unit offsets into the output string.
type StyleRange struct {
	Start  int
	Length int
	Style  Style
}

// String renders the range in signal-cli's "start:length:KIND" wire form.
func (r StyleRange) String() string {
	return strconv.Itoa(r.Start) + ":" + strconv.Itoa(r.Length) + ":" + string(r.Style)
}

// marker is one recognized inline form. Markers are tried in this exact
// order at each position; the first that matches wins. This reproduces the
// ordered-alternation tie-break of the wire protocol: when two candidate
// spans start at the same offset, the earlier marker kind takes precedence.
type marker struct {
	open  string
	close string
	style Style
}

var markers = []marker{
	{"**", "**", StyleBold},
	{"__", "__", StyleItalic},
	{"~~", "~~", StyleStrikethrough},
	{"||", "||", StyleSpoiler},
	{"`", "`", StyleMonospace},
}

// markerStart holds every byte that can begin a match, so the literal-copy
// fast path can skip ahead without probing each position.
const markerStart = "*_~|`["

// Convert parses Telegram markdown and returns the plain text together with
// the style ranges covering it. Literal text outside any recognized span is
// copied verbatim, including unmatched opening markers. Nested markup inside
// a span is converted recursively; inner ranges are reported relative to the
// output string, after the outer range. Zero-length ranges are emitted as-is,
// never suppressed.
func Convert(text string) (string, []StyleRange) {
	var out strings.Builder
	var styles []StyleRange
	outLen := 0 // UTF-16 length of out

	i := 0
	for i < len(text) {
		next := strings.IndexAny(text[i:], markerStart)
		if next < 0 {
			out.WriteString(text[i:])
			break
		}
		if next > 0 {
			seg := text[i : i+next]
			out.WriteString(seg)
			outLen += utf16Len(seg)
			i += next
		}

		inner, end, style, ok := matchAt(text, i)
		if !ok {
			// Not a span start after all: the byte is literal.
			out.WriteByte(text[i])
			outLen++ // marker bytes are ASCII
			i++
			continue
		}

		innerPlain, innerStyles := Convert(inner)
		length := utf16Len(innerPlain)
		styles = append(styles, StyleRange{Start: outLen, Length: length, Style: style})
		for _, s := range innerStyles {
			styles = append(styles, StyleRange{Start: outLen + s.Start, Length: s.Length, Style: s.Style})
		}
		out.WriteString(innerPlain)
		outLen += length
		i = end
	}

	return out.String(), styles
}

// matchAt tries every marker kind at byte offset i, in priority order.
// On success it returns the raw inner span, the byte offset just past the
// closing marker, and the style.
func matchAt(text string, i int) (inner string, end int, style Style, ok bool) {
	for _, m := range markers {
		if !strings.HasPrefix(text[i:], m.open) {
			continue
		}
		// Shortest non-empty inner span: the first closing marker at
		// least one byte past the opener (lazy-match semantics).
		from := i + len(m.open) + 1
		if from > len(text) {
			continue
		}
		rel := strings.Index(text[from:], m.close)
		if rel < 0 {
			continue
		}
		closeAt := from + rel
		return text[i+len(m.open) : closeAt], closeAt + len(m.close), m.style, true
	}
	return matchLinkAt(text, i)
}

// matchLinkAt recognizes [label](target): the label is kept with italic
// emphasis, the target is discarded. Lazy label matching: each candidate
// closing bracket is tried left to right until one is followed by a
// parenthesized non-empty target.
func matchLinkAt(text string, i int) (inner string, end int, style Style, ok bool) {
	if i >= len(text) || text[i] != '[' {
		return "", 0, "", false
	}
	from := i + 2 // label is at least one byte
	for from <= len(text) {
		rel := strings.IndexByte(text[from:], ']')
		if rel < 0 {
			return "", 0, "", false
		}
		closeBracket := from + rel
		if closeBracket+1 < len(text) && text[closeBracket+1] == '(' {
			urlStart := closeBracket + 2
			urlRel := strings.IndexByte(text[urlStart:], ')')
			if urlRel >= 1 {
				return text[i+1 : closeBracket], urlStart + urlRel + 1, StyleItalic, true
			}
		}
		from = closeBracket + 1
	}
	return "", 0, "", false
}

// utf16Len returns the length of s in UTF-16 code units. Code points above
// the BMP take a surrogate pair, i.e. two units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}
