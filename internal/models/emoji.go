package models

import (
	"strings"
	"unicode"
)

// Ranges mirror the glyph classes the category table uses: dingbats,
// arrows, misc symbols and the supplementary emoji planes.
var emojiRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x203C, Hi: 0x2049, Stride: 1},
		{Lo: 0x20E3, Hi: 0x20E3, Stride: 1},
		{Lo: 0x2191, Hi: 0x21FF, Stride: 1},
		{Lo: 0x2302, Hi: 0x23CF, Stride: 1},
		{Lo: 0x23E9, Hi: 0x23F3, Stride: 1},
		{Lo: 0x23F8, Hi: 0x23FA, Stride: 1},
		{Lo: 0x24C2, Hi: 0x25EC, Stride: 1},
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1},
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1FAFF, Stride: 1},
	},
}

const (
	zeroWidthJoiner   = 0x200D
	variationSelector = 0xFE0F
	skinToneLo        = 0x1F3FB
	skinToneHi        = 0x1F3FF
)

func isEmojiBase(r rune) bool {
	return unicode.Is(emojiRanges, r)
}

func isEmojiModifier(r rune) bool {
	return r == variationSelector || (r >= skinToneLo && r <= skinToneHi)
}

// ExtractEmojis returns every emoji glyph in s, in order of appearance.
// A glyph is a base emoji plus any trailing modifiers and ZWJ-joined
// continuations, so sequences like 💇‍♂️ come back as a single entry.
func ExtractEmojis(s string) []string {
	var glyphs []string
	runes := []rune(s)

	for i := 0; i < len(runes); {
		if !isEmojiBase(runes[i]) {
			i++
			continue
		}

		j := i + 1
		for j < len(runes) {
			if isEmojiModifier(runes[j]) {
				j++
				continue
			}
			// ZWJ continues the glyph only when followed by another base.
			if runes[j] == zeroWidthJoiner && j+1 < len(runes) && isEmojiBase(runes[j+1]) {
				j += 2
				continue
			}
			break
		}
		glyphs = append(glyphs, string(runes[i:j]))
		i = j
	}
	return glyphs
}

// SplitCategory separates a composite category string into its icon (the
// first emoji glyph) and the remaining label. Only the first glyph is
// stripped from the label; any further emoji stay part of it.
// Returns ok=false when the string carries no emoji at all.
func SplitCategory(category string) (icon, label string, ok bool) {
	emojis := ExtractEmojis(category)
	if len(emojis) == 0 {
		return "", "", false
	}
	icon = emojis[0]
	label = strings.Replace(category, icon, "", 1)
	return icon, label, true
}

// RemoveEmojis strips every emoji glyph from s.
func RemoveEmojis(s string) string {
	for _, glyph := range ExtractEmojis(s) {
		s = strings.ReplaceAll(s, glyph, "")
	}
	return strings.TrimSpace(s)
}
