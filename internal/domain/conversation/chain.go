package conversation

// ChainResult 主消息链求解结果
// 主链指最近一条标题声明之后的根消息可达的全部消息
// 文件中更晚出现的根（compaction 边界）及其后代不属于主链
type ChainResult struct {
	// Root 主链根消息，文件无消息时为 nil
	Root *MessageRecord
	// Terminal 主链终端消息：成员中时间戳最新的非后台消息
	// 成员全部为后台消息时为 nil
	Terminal *MessageRecord
	// Members 主链全部成员，按文件内出现顺序排列（含后台消息与分支）
	Members []*MessageRecord
	// MemberIDs 主链成员 UUID 集合
	MemberIDs map[string]struct{}
}

// RootID 主链根消息 UUID，无根时为空
func (r ChainResult) RootID() string {
	if r.Root == nil {
		return ""
	}
	return r.Root.UUID
}

// TerminalID 主链终端消息 UUID，无终端时为空
func (r ChainResult) TerminalID() string {
	if r.Terminal == nil {
		return ""
	}
	return r.Terminal.UUID
}

// Contains 判断消息是否属于主链
func (r ChainResult) Contains(uuid string) bool {
	_, ok := r.MemberIDs[uuid]
	return ok
}

// ResolvePrimaryChain 求解文件的主消息链
// 算法：
//  1. 定位最后一条标题声明，游标置于其后
//  2. 主根 = 游标及之后的第一条根消息；不存在时回退到文件首条根消息
//  3. 对全部消息建立一次父子索引
//  4. 从主根广度优先收集全部可达消息（分支视为并列探索，同属主链）
//  5. 成员中时间戳最新的非后台消息为终端
func ResolvePrimaryChain(records []Record) ChainResult {
	result := ChainResult{
		MemberIDs: make(map[string]struct{}),
	}

	// 1. 最后一条标题声明的位置（记录下标）
	cursor := -1
	for i, r := range records {
		if _, ok := r.(*SummaryRecord); ok {
			cursor = i
		}
	}

	// 2. 定位主根
	var firstRoot *MessageRecord
	for i, r := range records {
		m, ok := r.(*MessageRecord)
		if !ok || !m.IsRoot() {
			continue
		}
		if firstRoot == nil {
			firstRoot = m
		}
		if i > cursor && result.Root == nil {
			result.Root = m
		}
	}
	if result.Root == nil {
		// 声明之后没有新根，回退到文件首条根消息
		result.Root = firstRoot
	}
	if result.Root == nil {
		return result
	}

	// 3. 建立父子索引
	children := make(map[string][]*MessageRecord)
	for _, m := range Messages(records) {
		if m.IsRoot() {
			continue
		}
		children[m.ParentUUID] = append(children[m.ParentUUID], m)
	}

	// 4. 从主根收集可达消息
	queue := []*MessageRecord{result.Root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := result.MemberIDs[cur.UUID]; seen {
			continue
		}
		result.MemberIDs[cur.UUID] = struct{}{}
		queue = append(queue, children[cur.UUID]...)
	}

	// Members 按文件顺序输出，遍历结果才可复现
	for _, m := range Messages(records) {
		if _, ok := result.MemberIDs[m.UUID]; ok {
			result.Members = append(result.Members, m)
		}
	}

	// 5. 选择终端：时间戳最新的非后台成员，时间相同时取文件中更靠后的
	for _, m := range result.Members {
		if m.IsSidechain {
			continue
		}
		if result.Terminal == nil || !m.Time().Before(result.Terminal.Time()) {
			result.Terminal = m
		}
	}

	return result
}
