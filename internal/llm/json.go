package llm

import "strings"

const codeBlockMarker = "```"

// ExtractJSON pulls the JSON object out of an oracle answer. It accepts a bare
// object, an object inside a fenced code block (with or without a language
// tag), or an object surrounded by prose. If no braces are found the trimmed
// input is returned unchanged and decoding will fail downstream.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, codeBlockMarker); idx >= 0 {
		lines := strings.Split(response[idx:], "\n")
		var jsonLines []string
		inBlock := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), codeBlockMarker) {
				if inBlock {
					break
				}
				inBlock = true
				continue
			}
			if inBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		if len(jsonLines) > 0 {
			response = strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}
