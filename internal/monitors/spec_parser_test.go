package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSpecMarkdownSections(t *testing.T) {
	doc := `# Supervisor Spec

## Components
- [x] queue_manager: Task queue
- [ ] webhook_receiver: Signed event intake

## Criteria
- [ ] C1: must validate input
- [x] C2: already covered

## Behaviors
- [ ] B1: retries on failure

## Non-goals
- [ ] N1: should be ignored
`

	sections := ParseSpecMarkdown(doc)

	assert.Equal(t, []SpecItem{
		{ID: "queue_manager", Description: "Task queue", Status: SpecItemChecked},
		{ID: "webhook_receiver", Description: "Signed event intake", Status: SpecItemUnchecked},
	}, sections.Components)
	assert.Equal(t, []SpecItem{
		{ID: "C1", Description: "must validate input", Status: SpecItemUnchecked},
		{ID: "C2", Description: "already covered", Status: SpecItemChecked},
	}, sections.Criteria)
	assert.Equal(t, []SpecItem{
		{ID: "B1", Description: "retries on failure", Status: SpecItemUnchecked},
	}, sections.Behaviors)
}

func TestParseSpecMarkdownEmptyDoc(t *testing.T) {
	sections := ParseSpecMarkdown("")
	assert.Empty(t, sections.Components)
	assert.Empty(t, sections.Criteria)
	assert.Empty(t, sections.Behaviors)
}
