package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/ytm/internal/models"
	"github.com/joescharf/ytm/internal/normalize"
)

// Directory resolves tag names against the tracker's tag registry.
type Directory interface {
	// ListTags returns tags visible to the current token, optionally
	// filtered by query. Query and limit pass through to the remote as-is.
	ListTags(ctx context.Context, query string, limit int) ([]models.Tag, error)
	// FindTagByName resolves an exact, case-sensitive tag name.
	// A missing tag is (nil, nil), not an error.
	FindTagByName(ctx context.Context, name string) (*models.Tag, error)
}

// IssueTagStore mutates the tag set of a single issue. Mutations return the
// tracker's updated issue representation, untouched.
type IssueTagStore interface {
	IssueTags(ctx context.Context, issueID string) ([]models.Tag, error)
	AddTag(ctx context.Context, issueID, tagID string) (any, error)
	// RemoveTag reports false when the store refuses the removal, e.g. the
	// tag is not on the issue.
	RemoveTag(ctx context.Context, issueID, tagID string) (bool, error)
	// SetTags replaces the issue's tags with exactly the given ids, in order.
	SetTags(ctx context.Context, issueID string, tagIDs []string) (any, error)
	ClearTags(ctx context.Context, issueID string) (any, error)
}

// Engine turns tag names into tag ids and applies tag mutations to issues.
// It holds no state between calls: every name is resolved fresh, every
// operation stands alone. All methods return the boundary JSON string the
// calling agent consumes; failures come back as {"error": "..."} on the same
// channel, never as a Go error.
type Engine struct {
	dir   Directory
	store IssueTagStore
}

// New creates an engine over the given directory and issue tag store.
func New(dir Directory, store IssueTagStore) *Engine {
	return &Engine{dir: dir, store: store}
}

func errorResult(msg string) string {
	return normalize.FormatJSON(map[string]any{"error": msg})
}

// AvailableTags lists tags owned by or shared with the current user.
func (e *Engine) AvailableTags(ctx context.Context, query string, limit int) string {
	tags, err := e.dir.ListTags(ctx, query, limit)
	if err != nil {
		return errorResult(err.Error())
	}
	if tags == nil {
		tags = []models.Tag{} // nil renders as JSON null, not a list
	}
	return normalize.FormatJSON(tags)
}

// IssueTags lists the tags currently on an issue.
func (e *Engine) IssueTags(ctx context.Context, issueID string) string {
	tags, err := e.store.IssueTags(ctx, issueID)
	if err != nil {
		return errorResult(err.Error())
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return normalize.FormatJSON(tags)
}

// AddTag resolves tagName and adds it to the issue, leaving existing tags in
// place. The name must resolve before any mutation is attempted.
func (e *Engine) AddTag(ctx context.Context, issueID, tagName string) string {
	tag, err := e.dir.FindTagByName(ctx, tagName)
	if err != nil {
		return errorResult(err.Error())
	}
	if tag == nil {
		return errorResult(fmt.Sprintf("Tag '%s' not found. Use get_available_tags() to see available tags.", tagName))
	}

	issue, err := e.store.AddTag(ctx, issueID, tag.ID)
	if err != nil {
		return errorResult(err.Error())
	}
	return normalize.FormatJSON(issue)
}

// RemoveTag resolves tagName and removes it from the issue.
func (e *Engine) RemoveTag(ctx context.Context, issueID, tagName string) string {
	tag, err := e.dir.FindTagByName(ctx, tagName)
	if err != nil {
		return errorResult(err.Error())
	}
	if tag == nil {
		return errorResult(fmt.Sprintf("Tag '%s' not found on this issue.", tagName))
	}

	ok, err := e.store.RemoveTag(ctx, issueID, tag.ID)
	if err != nil {
		return errorResult(err.Error())
	}
	if !ok {
		return errorResult(fmt.Sprintf("Failed to remove tag '%s' from issue %s", tagName, issueID))
	}
	return normalize.FormatJSON(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Tag '%s' removed from issue %s", tagName, issueID),
	})
}

// SetTags replaces the issue's entire tag set. Every name must resolve before
// anything is sent to the store: one unresolvable name aborts the whole
// operation. Ids are applied in input order, duplicates included.
func (e *Engine) SetTags(ctx context.Context, issueID string, tagNames []string) string {
	tagIDs := make([]string, 0, len(tagNames))
	var missing []string

	for _, name := range tagNames {
		tag, err := e.dir.FindTagByName(ctx, name)
		if err != nil {
			return errorResult(err.Error())
		}
		if tag == nil {
			missing = append(missing, name)
			continue
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	if len(missing) > 0 {
		return errorResult(fmt.Sprintf("Tags not found: %s. Use get_available_tags() to see available tags.", strings.Join(missing, ", ")))
	}

	issue, err := e.store.SetTags(ctx, issueID, tagIDs)
	if err != nil {
		return errorResult(err.Error())
	}
	return normalize.FormatJSON(issue)
}

// ClearTags removes every tag from the issue. Clearing an untagged issue is
// still a single store call and still succeeds.
func (e *Engine) ClearTags(ctx context.Context, issueID string) string {
	issue, err := e.store.ClearTags(ctx, issueID)
	if err != nil {
		return errorResult(err.Error())
	}
	return normalize.FormatJSON(issue)
}

// FindTag resolves a tag name to its full tag object.
func (e *Engine) FindTag(ctx context.Context, tagName string) string {
	tag, err := e.dir.FindTagByName(ctx, tagName)
	if err != nil {
		return errorResult(err.Error())
	}
	if tag == nil {
		return errorResult(fmt.Sprintf("Tag '%s' not found", tagName))
	}
	return normalize.FormatJSON(tag)
}
