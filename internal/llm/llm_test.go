package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSuggestPrompt(t *testing.T) {
	t.Run("with description", func(t *testing.T) {
		system, user := buildSuggestPrompt(
			"Deploy pipeline crashes on rollback",
			"The rollback step fails when the previous release was a hotfix.",
			[]string{"deploy", "urgent", "ci"},
		)

		assert.Contains(t, system, "JSON array")
		assert.Contains(t, system, "ONLY from the available list")

		assert.Contains(t, user, "Available tags: deploy, urgent, ci")
		assert.Contains(t, user, "Deploy pipeline crashes on rollback")
		assert.Contains(t, user, "rollback step fails")
	})

	t.Run("without description", func(t *testing.T) {
		_, user := buildSuggestPrompt("Add dark mode", "", []string{"ui"})

		assert.Contains(t, user, "Add dark mode")
		assert.NotContains(t, user, "Issue description")
	})

	t.Run("long description is carried whole", func(t *testing.T) {
		desc := strings.Repeat("x", 10000)
		_, user := buildSuggestPrompt("t", desc, []string{"a"})
		assert.Contains(t, user, desc)
	})
}

func TestFilterKnown(t *testing.T) {
	available := []string{"deploy", "urgent", "ci"}

	t.Run("keeps only known names", func(t *testing.T) {
		got := filterKnown([]string{"deploy", "ghost", "ci"}, available)
		assert.Equal(t, []string{"deploy", "ci"}, got)
	})

	t.Run("case must match", func(t *testing.T) {
		got := filterKnown([]string{"Deploy"}, available)
		assert.Empty(t, got)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		got := filterKnown([]string{"urgent", "urgent", "deploy"}, available)
		assert.Equal(t, []string{"urgent", "deploy"}, got)
	})

	t.Run("nothing fits", func(t *testing.T) {
		assert.Empty(t, filterKnown([]string{"ghost"}, available))
		assert.Empty(t, filterKnown(nil, available))
	})
}
