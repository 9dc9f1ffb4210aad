package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkPattern matches the reasoning markup some models wrap around output
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThink removes reasoning-model thinking blocks from a response
func StripThink(content string) string {
	if strings.Contains(content, "<think>") && strings.Contains(content, "</think>") {
		return strings.TrimSpace(thinkPattern.ReplaceAllString(content, ""))
	}
	return content
}

// ExtractJSONObject parses a JSON object out of a model response that may be
// wrapped in thinking markup, markdown fences, or conversational chatter.
// It tries a direct parse of the cleaned content first, then a substring parse
// between the first '{' and the last '}'.
func ExtractJSONObject(content string, out interface{}) error {
	cleaned := cleanJSONContent(StripThink(content))

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end != -1 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON object in response: %q", truncate(cleaned, 200))
}

// cleanJSONContent removes markdown code blocks and chatter lines preceding JSON
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if line == "" ||
			strings.HasPrefix(lower, "here is") ||
			strings.HasPrefix(lower, "the json") ||
			strings.HasPrefix(lower, "output:") ||
			strings.HasPrefix(lower, "response:") ||
			strings.HasPrefix(lower, "##") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
