package crawl_test

import (
	"testing"

	"github.com/fwojciec/sitemd"
	"github.com/fwojciec/sitemd/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageStore(t *testing.T) {
	t.Parallel()

	t.Run("preserves insertion order", func(t *testing.T) {
		t.Parallel()

		s := crawl.NewPageStore()
		s.Put(&sitemd.Page{URL: "https://example.com/b"})
		s.Put(&sitemd.Page{URL: "https://example.com/a"})

		all := s.All()
		require.Len(t, all, 2)
		assert.Equal(t, "https://example.com/b", all[0].URL)
		assert.Equal(t, "https://example.com/a", all[1].URL)
	})

	t.Run("replacing keeps position", func(t *testing.T) {
		t.Parallel()

		s := crawl.NewPageStore()
		s.Put(&sitemd.Page{URL: "https://example.com/a", Title: "old"})
		s.Put(&sitemd.Page{URL: "https://example.com/b"})
		s.Put(&sitemd.Page{URL: "https://example.com/a", Title: "new"})

		assert.Equal(t, 2, s.Len())
		assert.Equal(t, "new", s.All()[0].Title)

		p, ok := s.Get("https://example.com/a")
		require.True(t, ok)
		assert.Equal(t, "new", p.Title)

		_, ok = s.Get("https://example.com/missing")
		assert.False(t, ok)
	})
}

func TestImageStore(t *testing.T) {
	t.Parallel()

	s := crawl.NewImageStore()
	s.Put(&sitemd.Image{URL: "https://example.com/a.png"})
	s.Put(&sitemd.Image{URL: "https://example.com/b.png"})
	s.Put(&sitemd.Image{URL: "https://example.com/a.png"})

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("https://example.com/b.png"))
	assert.False(t, s.Has("https://example.com/c.png"))
	assert.Equal(t, "https://example.com/a.png", s.All()[0].URL)
}
