package extractor

import (
	"regexp"
	"strings"
)

// Markers that disqualify a line from being the paper title.
var boilerplateMarkers = []string{
	"abstract", "introduction", "keywords", "doi:", "arxiv:", "email:", "@",
	"university", "department", "volume", "issn",
}

// Author name shapes: "John Doe, Jane Smith and Bob Brown" or "J. Doe & J. Smith".
var authorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z][a-z]+ [A-Z][a-z]+(?:,? (?:and |& )?[A-Z][a-z]+ [A-Z][a-z]+)*`),
	regexp.MustCompile(`[A-Z]\. [A-Z][a-z]+(?:,? (?:and |& )?[A-Z]\. [A-Z][a-z]+)*`),
}

var trailingPunct = regexp.MustCompile(`[,;.]+$`)

// ParseFirstPage guesses title and authors from a paper's first page. The
// title candidate is the longest of the first 10 non-empty lines that is at
// least 10 characters, at least half alphabetic, and free of boilerplate
// markers. Authors are the first capitalized-name pattern in the first 15
// lines. Either result may be empty; that is "unknown", not an error.
func ParseFirstPage(text string) (title, authors string) {
	if text == "" {
		return "", ""
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	for i, line := range lines {
		if i >= 10 {
			break
		}
		if len(line) < 10 || hasBoilerplate(line) || alphaRatio(line) < 0.5 {
			continue
		}
		if len(line) > len(title) {
			title = line
		}
	}

	for i, line := range lines {
		if i >= 15 {
			break
		}
		// A Title Case title line would match the name pattern too.
		if line == title {
			continue
		}
		for _, pattern := range authorPatterns {
			if match := pattern.FindString(line); match != "" {
				return title, trailingPunct.ReplaceAllString(match, "")
			}
		}
	}

	return title, ""
}

func hasBoilerplate(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func alphaRatio(line string) float64 {
	alpha := 0
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alpha++
		}
	}
	return float64(alpha) / float64(len(line))
}
