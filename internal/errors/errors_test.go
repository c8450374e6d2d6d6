package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := os.ErrNotExist
	err := Wrap(cause, CategoryGit, SeverityError, "fetch upstream")

	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "fetch upstream")
	assert.True(t, IsCategory(err, CategoryGit))
	assert.False(t, IsCategory(err, CategoryBuild))
}

func TestCategorySurvivesFurtherWrapping(t *testing.T) {
	inner := Fatal(CategoryOverride, "replacement source missing")
	outer := fmt.Errorf("stage failed: %w", inner)

	assert.True(t, IsCategory(outer, CategoryOverride))
	assert.Equal(t, CategoryOverride, GetCategory(outer))
}

func TestIsCategorySeesThroughRecategorizedWrappers(t *testing.T) {
	inner := Fatal(CategoryGit, "fetch remote refs")
	outer := WrapFatal(inner, CategoryBuild, "sync before build")

	assert.True(t, IsCategory(outer, CategoryBuild))
	assert.True(t, IsCategory(outer, CategoryGit), "inner category must stay visible")
	assert.False(t, IsCategory(outer, CategoryFeeds))
	// GetCategory reports the outermost classification.
	assert.Equal(t, CategoryBuild, GetCategory(outer))
}

func TestGetCategoryDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := New(CategoryFeeds, SeverityError, "tool exited non-zero").WithContext("feed", "splitdns")
	require.NotNil(t, err.Context)
	assert.Equal(t, "splitdns", err.Context["feed"])
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, Fatal(CategoryConfig, "x").Severity)
	assert.Equal(t, SeverityWarning, New(CategoryConfig, SeverityWarning, "x").Severity)
}
