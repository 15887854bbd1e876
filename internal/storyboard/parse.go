// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in model output")

// Parse extracts a storyboard from raw model output. It tolerates markdown
// fences, surrounding chatter, trailing commas and truncated output, and it
// drops blank scenes and a variation list of the wrong size. It only fails
// when no scene or no protagonist prompt survives.
// repaired reports whether the bounded repair pass was needed.
func Parse(raw string) (sb Storyboard, repaired bool, err error) {
	body, ok := extractObject(raw)
	if !ok {
		return Storyboard{}, false, errNoJSONObject
	}

	if err := json.Unmarshal([]byte(body), &sb); err != nil {
		fixed := repairJSON(body)
		sb = Storyboard{}
		if err2 := json.Unmarshal([]byte(fixed), &sb); err2 != nil {
			return Storyboard{}, true, fmt.Errorf("decode storyboard: %w", err)
		}
		repaired = true
	}

	sb, fixed := fillScenes(sb)
	repaired = repaired || fixed
	if err := sb.Validate(); err != nil {
		return Storyboard{}, repaired, err
	}
	return sb.Normalize(), repaired, nil
}

// extractObject returns the first balanced JSON object in raw. When the
// object never closes, the remainder is returned for repair.
func extractObject(raw string) (string, bool) {
	s := stripFences(raw)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return s[start:], true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// repairJSON makes one pass over s: it drops commas that directly precede a
// closing bracket, terminates an unterminated string, removes a dangling
// trailing comma and closes any brackets left open.
func repairJSON(s string) string {
	var (
		out      strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	out.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if next := nextNonSpace(s, i+1); next == '}' || next == ']' || next == 0 {
				continue
			}
		}
		out.WriteByte(c)
	}

	if inString {
		if escaped {
			out.WriteByte('\\')
		}
		out.WriteByte('"')
	}
	res := strings.TrimRight(out.String(), " \t\r\n")
	res = strings.TrimSuffix(res, ",")
	// An object cut after a key ("key": ) cannot be closed meaningfully.
	if strings.HasSuffix(res, ":") {
		res = trimDanglingKey(res)
	}
	for i := len(stack) - 1; i >= 0; i-- {
		res += string(stack[i])
	}
	return res
}

func nextNonSpace(s string, from int) byte {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return s[j]
		}
	}
	return 0
}

// trimDanglingKey drops a trailing `, "key":` fragment.
func trimDanglingKey(s string) string {
	s = strings.TrimSuffix(s, ":")
	s = strings.TrimRight(s, " \t\r\n")
	if !strings.HasSuffix(s, `"`) {
		return s
	}
	open := strings.LastIndex(s[:len(s)-1], `"`)
	if open < 0 {
		return s
	}
	s = strings.TrimRight(s[:open], " \t\r\n")
	return strings.TrimSuffix(s, ",")
}

// fillScenes backfills empty scene prompts from their descriptions, drops
// scenes with neither, and drops protagonist variations unless exactly four
// non-blank entries remain. changed reports whether anything was dropped.
func fillScenes(sb Storyboard) (out Storyboard, changed bool) {
	scenes := sb.Scenes[:0:0]
	for _, sc := range sb.Scenes {
		if strings.TrimSpace(sc.Prompt) == "" {
			sc.Prompt = strings.TrimSpace(sc.Description)
		}
		if sc.Prompt == "" {
			changed = true
			continue
		}
		scenes = append(scenes, sc)
	}
	sb.Scenes = scenes

	if len(sb.ProtagonistVariations) > 0 {
		var vars []string
		for _, v := range sb.ProtagonistVariations {
			if v = strings.TrimSpace(v); v != "" {
				vars = append(vars, v)
			}
		}
		if len(vars) != ProtagonistVariationCount {
			vars = nil
		}
		changed = changed || len(vars) != len(sb.ProtagonistVariations)
		sb.ProtagonistVariations = vars
	}
	return sb, changed
}
