package bloom_test

import (
	"fmt"
	"testing"

	"github.com/fwojciec/sitemd/bloom"
	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	t.Parallel()

	t.Run("never forgets an added URL", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(500, 0.01)
		for i := range 500 {
			f.Add(fmt.Sprintf("https://example.com/docs/%d", i))
		}
		for i := range 500 {
			assert.True(t, f.Test(fmt.Sprintf("https://example.com/docs/%d", i)))
		}
	})

	t.Run("TestAndAdd reports prior membership", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(100, 0.01)
		assert.False(t, f.TestAndAdd("https://example.com/"))
		assert.True(t, f.TestAndAdd("https://example.com/"))
		assert.True(t, f.Test("https://example.com/"))
	})

	t.Run("keeps false positives near the configured rate", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(1000, 0.01)
		for i := range 1000 {
			f.Add(fmt.Sprintf("https://example.com/seen/%d", i))
		}
		hits := 0
		for i := range 1000 {
			if f.Test(fmt.Sprintf("https://example.com/unseen/%d", i)) {
				hits++
			}
		}
		assert.Less(t, hits, 50)
	})
}
