package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/devasignhq/devasign-api-sub002/internal/logger"
	"github.com/devasignhq/devasign-api-sub002/mocks"
)

func TestChunkFile(t *testing.T) {
	var lines []string
	for i := 1; i <= 120; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}

	docs := ChunkFile("main.go", strings.Join(lines, "\n")+"\n")

	require.Len(t, docs, 3)
	assert.Equal(t, 1, docs[0].Metadata["start_line"])
	assert.Equal(t, 60, docs[0].Metadata["end_line"])
	assert.Equal(t, 51, docs[1].Metadata["start_line"])
	assert.Equal(t, 110, docs[1].Metadata["end_line"])
	assert.Equal(t, 101, docs[2].Metadata["start_line"])
	assert.Equal(t, 120, docs[2].Metadata["end_line"])
	assert.Equal(t, "main.go", docs[2].Metadata["source"])

	assert.Empty(t, ChunkFile("empty.go", "\n"))
}

func TestIsIndexable(t *testing.T) {
	assert.True(t, IsIndexable("cmd/main.go"))
	assert.True(t, IsIndexable("README.MD"))
	assert.False(t, IsIndexable("logo.png"))
	assert.False(t, IsIndexable("Makefile"))
}

func TestIndexerIndexPaths(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetFileContent(gomock.Any(), "acme", "widgets", "main.go", "main").Return([]byte("package main\n"), nil)
	client.EXPECT().GetFileContent(gomock.Any(), "acme", "widgets", "gone.go", "main").Return(nil, notFound())

	index := &fakeIndex{}
	ix := NewIndexer(index, logger.Discard())

	n, err := ix.IndexPaths(t.Context(), client, 1, "acme", "widgets", "main", []string{"main.go", "gone.go", "logo.png"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, index.indexed, 1)
	assert.Equal(t, "package main", index.indexed[0].PageContent)
}
