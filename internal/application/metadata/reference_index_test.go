package metadata

import (
	"testing"

	"github.com/coclaude/backend/internal/domain/conversation"
	"github.com/stretchr/testify/assert"
)

func TestBuildReferenceIndex(t *testing.T) {
	files := []ProjectFile{
		{Path: "/p/a.jsonl"},
		{Path: "/p/b.jsonl"},
	}
	declarations := map[string][]*conversation.SummaryRecord{
		"/p/a.jsonl": {
			{Summary: "Title A", LeafUUID: "u1"},
			{Summary: "", LeafUUID: "u2"},      // 空标题不入索引
			{Summary: "No target", LeafUUID: ""}, // 无目标不入索引
		},
		"/p/b.jsonl": {
			{Summary: "Title B", LeafUUID: "u3"},
		},
	}

	index := BuildReferenceIndex(files, func(file ProjectFile) []*conversation.SummaryRecord {
		return declarations[file.Path]
	})

	assert.Equal(t, 2, index.Size())

	d, ok := index.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "Title A", d.Title)
	assert.Equal(t, "/p/a.jsonl", d.SourcePath)

	_, ok = index.Lookup("u2")
	assert.False(t, ok)
	_, ok = index.Lookup("missing")
	assert.False(t, ok)
}

func TestBuildReferenceIndex_DuplicateTargetLastWins(t *testing.T) {
	files := []ProjectFile{
		{Path: "/p/a.jsonl"},
		{Path: "/p/b.jsonl"},
	}
	declarations := map[string][]*conversation.SummaryRecord{
		"/p/a.jsonl": {{Summary: "Earlier", LeafUUID: "u1"}},
		"/p/b.jsonl": {{Summary: "Later", LeafUUID: "u1"}},
	}

	index := BuildReferenceIndex(files, func(file ProjectFile) []*conversation.SummaryRecord {
		return declarations[file.Path]
	})

	d, ok := index.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "Later", d.Title, "排序后更晚的文件胜出")
}

func TestBuildReferenceIndex_OrderIndependent(t *testing.T) {
	declarations := map[string][]*conversation.SummaryRecord{
		"/p/a.jsonl": {{Summary: "Earlier", LeafUUID: "u1"}},
		"/p/b.jsonl": {
			{Summary: "Later", LeafUUID: "u1"},
			{Summary: "Only B", LeafUUID: "u2"},
		},
	}
	load := func(file ProjectFile) []*conversation.SummaryRecord {
		return declarations[file.Path]
	}

	forward := BuildReferenceIndex([]ProjectFile{
		{Path: "/p/a.jsonl"}, {Path: "/p/b.jsonl"},
	}, load)
	reversed := BuildReferenceIndex([]ProjectFile{
		{Path: "/p/b.jsonl"}, {Path: "/p/a.jsonl"},
	}, load)

	assert.Equal(t, forward.byTarget, reversed.byTarget, "构建顺序不影响索引内容")

	d, ok := reversed.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "Later", d.Title)
}

func TestReferenceIndex_LookupForeign(t *testing.T) {
	index := &ReferenceIndex{byTarget: map[string]Declaration{
		"u1": {Title: "T", TargetUUID: "u1", SourcePath: "/p/a.jsonl"},
	}}

	_, ok := index.LookupForeign("u1", "/p/a.jsonl")
	assert.False(t, ok, "自身文件的声明不是跨文件引用")

	d, ok := index.LookupForeign("u1", "/p/b.jsonl")
	assert.True(t, ok)
	assert.Equal(t, "T", d.Title)
}
