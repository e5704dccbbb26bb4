package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	t.Run("Should classify every built-in control-flow type name", func(t *testing.T) {
		cases := map[string]Category{
			"Start":           CategoryStart,
			"End":             CategoryEnd,
			"If":              CategoryIf,
			"Switch":          CategorySwitch,
			"Merge":           CategoryMerge,
			"ForLoopStart":    CategoryForLoopStart,
			"ForLoopEnd":      CategoryForLoopEnd,
			"WhileLoopStart":  CategoryWhileLoopStart,
			"WhileLoopEnd":    CategoryWhileLoopEnd,
			"Break":           CategoryBreak,
			"Continue":        CategoryContinue,
			"Try":             CategoryTry,
			"Catch":           CategoryCatch,
			"Finally":         CategoryFinally,
			"Retry":           CategoryRetry,
			"ThrowError":      CategoryThrowError,
			"SubWorkflowCall": CategorySubWorkflowCall,
		}
		for name, want := range cases {
			assert.Equal(t, want, CategoryOf(name), "type %s", name)
		}
	})

	t.Run("Should classify an unrecognized type name as opaque", func(t *testing.T) {
		assert.Equal(t, CategoryOpaque, CategoryOf("HttpRequest"))
	})

	t.Run("Should report control-flow membership", func(t *testing.T) {
		assert.True(t, CategoryIf.IsControlFlow())
		assert.False(t, CategoryOpaque.IsControlFlow())
	})

	t.Run("Should identify loop start and end categories", func(t *testing.T) {
		assert.True(t, CategoryForLoopStart.IsLoopStart())
		assert.True(t, CategoryWhileLoopStart.IsLoopStart())
		assert.False(t, CategoryIf.IsLoopStart())
		assert.True(t, CategoryForLoopEnd.IsLoopEnd())
		assert.True(t, CategoryWhileLoopEnd.IsLoopEnd())
	})
}
