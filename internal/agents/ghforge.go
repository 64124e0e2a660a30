package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/itchyny/gojq"
)

// GHForgeClient implements ForgeClient by shelling out to the `gh` CLI,
// the same external-tool-via-exec-plus-gojq pattern the git monitor uses
// for CI status (RunGHPRChecks, parseCIStatuses).
type GHForgeClient struct{}

// NewGHForgeClient builds a GHForgeClient.
func NewGHForgeClient() *GHForgeClient { return &GHForgeClient{} }

var prCommentsQuery = mustParseQuery(`[.[] | . as $pr | ($pr.comments // [])[] | {id: .id, pr: $pr.number, branch: $pr.headRefName, path: .path, line: (.line // 0), body: .body}]`)

func mustParseQuery(src string) *gojq.Query {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	return q
}

// ListOpenPRComments lists review comments on every open PR via
// `gh pr list --json number,comments,headRefName`, flattened with a gojq
// query rather than a hand-rolled nested struct.
func (c *GHForgeClient) ListOpenPRComments(ctx context.Context) ([]PRComment, error) {
	out, err := exec.CommandContext(ctx, "gh", "pr", "list", "--state", "open", "--json", "number,comments,headRefName").Output() //nolint:gosec // G204: fixed argv, no user input
	if err != nil {
		return nil, fmt.Errorf("listing open PRs: %w", err)
	}

	var input any
	if err := json.Unmarshal(out, &input); err != nil {
		return nil, fmt.Errorf("parsing gh pr list output: %w", err)
	}

	iter := prCommentsQuery.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := v.(error); ok {
		return nil, fmt.Errorf("flattening pr comments: %w", err)
	}

	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected pr comments shape")
	}

	comments := make([]PRComment, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		comments = append(comments, PRComment{
			ID:     stringOf(m["id"]),
			PR:     intOf(m["pr"]),
			Branch: stringOf(m["branch"]),
			Path:   stringOf(m["path"]),
			Line:   intOf(m["line"]),
			Body:   stringOf(m["body"]),
		})
	}
	return comments, nil
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// ReplyToComment acknowledges a review comment via
// `gh api repos/{owner}/{repo}/pulls/comments/{id}/replies`.
func (c *GHForgeClient) ReplyToComment(ctx context.Context, prNumber int, commentID, body string) error {
	if err := ValidatePRNumber(strconv.Itoa(prNumber)); err != nil {
		return err
	}
	if err := ValidateCommentID(commentID); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("repos/{owner}/{repo}/pulls/comments/%s/replies", commentID)
	cmd := exec.CommandContext(ctx, "gh", "api", endpoint, "-f", "body="+body) //nolint:gosec // G204: endpoint/body validated above, no shell interpolation
	return cmd.Run()
}
