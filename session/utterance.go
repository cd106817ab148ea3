// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Dynamic values inside option text are written as markers,
// "[time_left_dynamic(0:30)]", and rendered as placeholders whose value
// the client keeps current:
//
//	<span class="dynamic-utt-value time_left-value">0:30</span>
var (
	dynamicMarker = regexp.MustCompile(`\[([A-Za-z0-9_-]+?)_dynamic\(([^()\[\]<]*)\)\]`)
	dynamicSpan   = regexp.MustCompile(`<span class="dynamic-utt-value ([A-Za-z0-9_-]+)-value">([^<]*)</span>`)
	// leftoverMarker finds marker openings a well-formed match missed.
	leftoverMarker = regexp.MustCompile(`\[[^\[\]]*_dynamic\([^\]]*\]?|<span class="dynamic-utt-value[^>]*>[^<]*(</span>)?`)
)

const dynamicSpanTemplate = `<span class="dynamic-utt-value %s-value">%s</span>`

// BuildDynamicUtterance replaces every well-formed marker with its
// placeholder. Malformed markers are left as they are; see
// [MalformedMarkers].
func BuildDynamicUtterance(text string) string {
	return dynamicMarker.ReplaceAllStringFunc(text, func(marker string) string {
		parts := dynamicMarker.FindStringSubmatch(marker)
		return fmt.Sprintf(dynamicSpanTemplate, parts[1], parts[2])
	})
}

// ClearDynamicUtterance turns placeholders back into markers. It is the
// exact inverse of BuildDynamicUtterance.
func ClearDynamicUtterance(text string) string {
	return dynamicSpan.ReplaceAllString(text, "[${1}_dynamic(${2})]")
}

// LiteralUtterance resolves markers and placeholders to plain values for
// sending. A value in slots (keyed by field name) wins over the default
// carried in the text.
func LiteralUtterance(text string, slots map[string]string) string {
	resolve := func(pattern *regexp.Regexp) func(string) string {
		return func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if value, ok := slots[parts[1]]; ok {
				return value
			}
			return parts[2]
		}
	}
	text = dynamicSpan.ReplaceAllStringFunc(text, resolve(dynamicSpan))
	return dynamicMarker.ReplaceAllStringFunc(text, resolve(dynamicMarker))
}

// MalformedMarkers returns the marker-like fragments of text that are
// not well-formed markers or placeholders.
func MalformedMarkers(text string) []string {
	stripped := dynamicMarker.ReplaceAllString(text, "")
	stripped = dynamicSpan.ReplaceAllString(stripped, "")
	return leftoverMarker.FindAllString(stripped, -1)
}

// optionIDStrip matches what is dropped from text-derived option ids.
var optionIDStrip = regexp.MustCompile(`[\s'?]+`)

// OptionID returns the id of an option: its state name, or its text
// with whitespace, apostrophes and question marks removed.
func OptionID(stateName, text string) string {
	if stateName != "" {
		return stateName
	}
	return optionIDStrip.ReplaceAllString(text, "")
}

// CapitalizeMessage upper-cases the first letter of a chat message.
// Image messages ("image:<url>") are left alone.
func CapitalizeMessage(message string) string {
	if message == "" || strings.HasPrefix(message, "image") {
		return message
	}
	first, size := utf8.DecodeRuneInString(message)
	return string(unicode.ToUpper(first)) + message[size:]
}
