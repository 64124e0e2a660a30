package monitors

import (
	"bufio"
	"regexp"
	"strings"
)

var specItemPattern = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s*([A-Za-z0-9_.-]+):\s*(.*)$`)

// ParseSpecMarkdown parses a spec document's "## Components", "## Criteria",
// and "## Behaviors" checklist sections into SpecSections. Each item line
// has the form "- [ ] id: description" or "- [x] id: description"; lines
// outside the three recognized headings, and headings the Spec Drift
// Monitor doesn't track, are ignored.
func ParseSpecMarkdown(doc string) SpecSections {
	var sections SpecSections
	var current *[]SpecItem

	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			switch headingKey(line) {
			case "components":
				current = &sections.Components
			case "criteria":
				current = &sections.Criteria
			case "behaviors", "behaviours":
				current = &sections.Behaviors
			default:
				current = nil
			}
			continue
		}

		if current == nil {
			continue
		}
		if m := specItemPattern.FindStringSubmatch(line); m != nil {
			status := SpecItemUnchecked
			if strings.EqualFold(m[1], "x") {
				status = SpecItemChecked
			}
			*current = append(*current, SpecItem{ID: m[2], Description: strings.TrimSpace(m[3]), Status: status})
		}
	}

	return sections
}

func headingKey(line string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(line), "# "))
}
