package theme

import (
	"strings"
)

// findBlockEnd finds the end of a CSS block (the matching closing brace)
func findBlockEnd(content string, startPos int) int {
	if startPos >= len(content) {
		return len(content)
	}

	openBrace := strings.Index(content[startPos:], "{")
	if openBrace == -1 {
		return len(content)
	}
	openBrace += startPos

	depth := 1
	pos := openBrace + 1
	for pos < len(content) && depth > 0 {
		switch content[pos] {
		case '{':
			depth++
		case '}':
			depth--
		}
		pos++
	}

	return pos
}

// ParseMetadata parses a `/* Theme: ... */` comment block.
func ParseMetadata(cssContent string) Metadata {
	meta := Metadata{}

	startIdx := strings.Index(cssContent, "/*")
	if startIdx == -1 {
		return meta
	}

	endIdx := strings.Index(cssContent[startIdx:], "*/")
	if endIdx == -1 {
		return meta
	}

	block := cssContent[startIdx+2 : startIdx+endIdx]
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Theme:"):
			meta.Theme = strings.TrimSpace(strings.TrimPrefix(line, "Theme:"))
		case strings.HasPrefix(line, "Scheme:"):
			meta.Scheme = strings.TrimSpace(strings.TrimPrefix(line, "Scheme:"))
		case strings.HasPrefix(line, "Accent:"):
			meta.Accent = strings.TrimSpace(strings.TrimPrefix(line, "Accent:"))
		case strings.HasPrefix(line, "Display:"):
			meta.Display = strings.TrimSpace(strings.TrimPrefix(line, "Display:"))
		case strings.HasPrefix(line, "Border:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "Border:"))
			meta.Border = v == "true" || v == "1" || v == "yes"
		}
	}

	return meta
}

// ParseSchemes parses all scheme blocks and the trailing base CSS out of a
// theme file. A scheme starts with a metadata comment naming both Theme and
// Scheme, followed by either a `[data-scheme="..."]` wrapped block or bare
// `:root`/`body` blocks. Everything after a `/* Base CSS */` marker (or after
// the last scheme) is base CSS shared by all schemes.
func ParseSchemes(cssContent string) ([]Scheme, string) {
	var schemes []Scheme
	content := cssContent
	pos := 0
	lastSchemeEnd := 0

	for pos < len(content) {
		metaStart := strings.Index(content[pos:], "/*")
		if metaStart == -1 {
			break
		}
		metaStart += pos

		metaEnd := strings.Index(content[metaStart:], "*/")
		if metaEnd == -1 {
			break
		}
		metaEnd += metaStart

		meta := ParseMetadata(content[metaStart : metaEnd+2])
		if meta.Theme == "" || meta.Scheme == "" {
			pos = metaEnd + 2
			continue
		}

		selector := `[data-scheme="` + meta.Scheme + `"]`
		schemeStart := strings.Index(content[metaEnd:], selector)
		wrapped := true
		if schemeStart == -1 {
			rootStart := strings.Index(content[metaEnd:], ":root")
			if rootStart == -1 {
				pos = metaEnd + 2
				continue
			}
			schemeStart = rootStart + metaEnd
			wrapped = false
		} else {
			schemeStart += metaEnd
		}

		var schemeEnd int
		if wrapped {
			// The scheme runs until the next comment block, which is either
			// the next scheme's metadata or the base CSS marker.
			nextMeta := strings.Index(content[schemeStart:], "/*")
			if nextMeta == -1 {
				schemeEnd = len(content)
			} else {
				schemeEnd = schemeStart + nextMeta
			}
		} else {
			schemeEnd = findBlockEnd(content, schemeStart)

			// A body block immediately following the :root block belongs to
			// the same scheme.
			bodyStart := strings.Index(content[schemeEnd:], "body{")
			if bodyStart != -1 && bodyStart < 50 {
				schemeEnd = findBlockEnd(content, schemeEnd+bodyStart)
			}
		}

		schemeCSS := strings.TrimSpace(content[schemeStart:schemeEnd])
		lastSchemeEnd = schemeEnd

		if !strings.HasPrefix(schemeCSS, `[data-scheme="`) {
			schemeCSS = `[data-scheme="` + meta.Scheme + `"] ` + schemeCSS
		}

		exists := false
		for _, s := range schemes {
			if s.Name == meta.Scheme {
				exists = true
				break
			}
		}
		if !exists {
			schemes = append(schemes, Scheme{
				Name:    meta.Scheme,
				Accent:  meta.Accent,
				Display: meta.Display,
				Border:  meta.Border,
				CSS:     schemeCSS,
			})
		}

		pos = schemeEnd
	}

	baseStart := strings.Index(content, baseCSSMarker)
	if baseStart != -1 {
		if markerEnd := strings.Index(content[baseStart:], "*/"); markerEnd != -1 {
			baseStart = baseStart + markerEnd + 2
		}
	} else {
		baseStart = lastSchemeEnd
	}
	for baseStart < len(content) {
		switch content[baseStart] {
		case ' ', '\n', '\r', '\t':
			baseStart++
			continue
		}
		break
	}

	return schemes, strings.TrimSpace(content[baseStart:])
}

const baseCSSMarker = "/* Base CSS"
