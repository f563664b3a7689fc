package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructure_Chapter(t *testing.T) {
	s := &Structure{Spine: []*ChapterRef{{ID: "a"}, {ID: "b"}}}

	assert.Equal(t, 2, s.ChapterCount())
	assert.Equal(t, "b", s.Chapter(1).ID)
	assert.Nil(t, s.Chapter(2))
	assert.Nil(t, s.Chapter(-1))
}

func TestFlatTOC(t *testing.T) {
	spine := []*ChapterRef{{ID: "a", Label: "A", Href: "/x/a.xhtml"}, {ID: "b", Label: "B", Href: "/x/b.xhtml"}}
	toc := FlatTOC(spine)

	assert.Len(t, toc, 2)
	assert.Equal(t, spine[0].Href, toc[0].Href)
	toc[0].Label = "changed"
	assert.Equal(t, "A", spine[0].Label)
}

func TestWalk(t *testing.T) {
	toc := []*ChapterRef{
		{ID: "1", Children: []*ChapterRef{{ID: "1.1"}, {ID: "1.2", Children: []*ChapterRef{{ID: "1.2.1"}}}}},
		{ID: "2"},
	}

	var ids []string
	var depths []int
	Walk(toc, func(r *ChapterRef, depth int) {
		ids = append(ids, r.ID)
		depths = append(depths, depth)
	})

	assert.Equal(t, []string{"1", "1.1", "1.2", "1.2.1", "2"}, ids)
	assert.Equal(t, []int{0, 1, 1, 2, 0}, depths)
}
