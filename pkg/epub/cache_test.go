package epub

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shishobooks/lectern/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrParse_WritesCache(t *testing.T) {
	t.Parallel()
	root := testgen.ExtractEPUB(t, testgen.EPUBOptions{Chapters: 3, NestedTOC: true, HasCover: true})

	parsed, err := LoadOrParse(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, testgen.FileExists(filepath.Join(root, StructureFile)))

	cached, err := LoadOrParse(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, parsed, cached)
}

func TestLoadOrParse_UsesCacheWithoutReparsing(t *testing.T) {
	t.Parallel()
	root := testgen.ExtractEPUB(t, testgen.EPUBOptions{Chapters: 2})

	_, err := LoadOrParse(context.Background(), root)
	require.NoError(t, err)

	// A parse would now fail.
	require.NoError(t, os.Remove(filepath.Join(root, "META-INF", "container.xml")))

	s, err := LoadOrParse(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, s.Spine, 2)
}

func TestLoadOrParse_SurvivesMove(t *testing.T) {
	t.Parallel()
	root := testgen.ExtractEPUB(t, testgen.EPUBOptions{Chapters: 2, NestedTOC: true})

	_, err := LoadOrParse(context.Background(), root)
	require.NoError(t, err)

	moved := filepath.Join(t.TempDir(), "elsewhere")
	require.NoError(t, os.Rename(root, moved))

	s, err := LoadOrParse(context.Background(), moved)
	require.NoError(t, err)
	assert.Equal(t, moved, s.Root)
	assert.Equal(t, filepath.Join(moved, "OEBPS", "ch01.xhtml"), s.Spine[0].Href)
	assert.Equal(t, filepath.Join(moved, "OEBPS", "ch01.xhtml")+"#section2", s.TOC[0].Children[0].Href)
	assert.True(t, testgen.FileExists(s.Spine[1].Href))
}

func TestLoadOrParse_CorruptCacheIsReplaced(t *testing.T) {
	t.Parallel()
	root := testgen.ExtractEPUB(t, testgen.EPUBOptions{Chapters: 2})
	testgen.WriteFile(t, root, StructureFile, []byte("{not json"))

	s, err := LoadOrParse(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, s.Spine, 2)
}
