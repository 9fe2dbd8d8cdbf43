package metadata

import (
	"sort"

	"github.com/coclaude/backend/internal/domain/conversation"
)

// Declaration 一条标题声明及其来源文件
type Declaration struct {
	// Title 声明的标题文本
	Title string
	// TargetUUID 声明指向的消息 UUID
	TargetUUID string
	// SourcePath 声明所在文件
	SourcePath string
}

// ReferenceIndex 项目级跨文件引用索引
// 键为标题声明指向的消息 UUID，用于两件事：
//  1. 跨文件标题：其他文件的声明指向本文件主链成员时借用其标题
//  2. 取代判定：本文件终端被其他文件声明引用时，本文件不再是展示入口
type ReferenceIndex struct {
	byTarget map[string]Declaration
}

// summaryLoader 读取单个文件的标题声明
// 声明位于文件头部，实现方可以只解析头部若干行
type summaryLoader func(file ProjectFile) []*conversation.SummaryRecord

// BuildReferenceIndex 构建项目的跨文件引用索引
// 文件在内部按路径排序，结果与传入顺序无关；
// 同一目标被多个声明指向时，路径更晚的文件、同文件内更晚的声明胜出
func BuildReferenceIndex(files []ProjectFile, load summaryLoader) *ReferenceIndex {
	index := &ReferenceIndex{
		byTarget: make(map[string]Declaration),
	}

	sorted := make([]ProjectFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	for _, file := range sorted {
		for _, sum := range load(file) {
			if sum.LeafUUID == "" || sum.Summary == "" {
				continue
			}
			index.byTarget[sum.LeafUUID] = Declaration{
				Title:      sum.Summary,
				TargetUUID: sum.LeafUUID,
				SourcePath: file.Path,
			}
		}
	}

	return index
}

// Lookup 查询指向某消息的声明
func (idx *ReferenceIndex) Lookup(uuid string) (Declaration, bool) {
	d, ok := idx.byTarget[uuid]
	return d, ok
}

// LookupForeign 查询来自其他文件的声明
// 声明位于 selfPath 自身时不算（那是本文件的声明，不是跨文件引用）
func (idx *ReferenceIndex) LookupForeign(uuid, selfPath string) (Declaration, bool) {
	d, ok := idx.byTarget[uuid]
	if !ok || d.SourcePath == selfPath {
		return Declaration{}, false
	}
	return d, true
}

// Size 索引中的声明数量
func (idx *ReferenceIndex) Size() int {
	return len(idx.byTarget)
}
