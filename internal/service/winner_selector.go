package service

import (
	"sort"
	"strings"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

// WinnerSelector 把归一化随机数映射到中奖购票记录
//
// 记录序列把 [1, entriesLength] 切分为连续区间，随机数落在谁的
// 区间谁中奖，权重即票数。卖家地址在拒绝名单上：卖家名下的记录
// 永远不能中奖 (购票路径禁止卖家自购，但赠票路径不过滤名单，
// 因此这里的跳过逻辑不能当作死代码)。
type WinnerSelector struct{}

// NewWinnerSelector 创建选择器
func NewWinnerSelector() *WinnerSelector {
	return &WinnerSelector{}
}

// Select 用二分查找定位随机数 r 所在的记录
//
// 前缀和数组按构造有序 (追加写入且累计值严格递增)，findUpperBound
// 语义：返回第一个累计值 >= r 的下标。若命中的记录在拒绝名单上，
// 从该下标开始环形向前回退，到下标 0 后绕回末尾，直到找到不在
// 名单上的记录；全部被拒绝时返回 ErrWinnerNotFound。
func (s *WinnerSelector) Select(entries []*model.EntryRecord, denied map[string]struct{}, r int64) (*model.EntryRecord, error) {
	if len(entries) == 0 {
		return nil, ErrWinnerNotFound
	}
	total := entries[len(entries)-1].CumulativeEntries
	if r < 1 || r > total {
		return nil, ErrWinnerNotFound
	}

	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].CumulativeEntries >= r
	})

	return s.resolveDenied(entries, denied, idx)
}

// SelectLinear 线性扫描定位随机数 r 所在的记录
//
// 与 Select 对同一账本和随机数必须返回同一中奖记录，
// 仅查找成本不同 (O(n) 对 O(log n))。
func (s *WinnerSelector) SelectLinear(entries []*model.EntryRecord, denied map[string]struct{}, r int64) (*model.EntryRecord, error) {
	if len(entries) == 0 {
		return nil, ErrWinnerNotFound
	}
	total := entries[len(entries)-1].CumulativeEntries
	if r < 1 || r > total {
		return nil, ErrWinnerNotFound
	}

	for i, entry := range entries {
		if entry.CumulativeEntries >= r {
			return s.resolveDenied(entries, denied, i)
		}
	}
	return nil, ErrWinnerNotFound
}

// resolveDenied 从 idx 开始环形向前回退到最近的非拒绝记录
func (s *WinnerSelector) resolveDenied(entries []*model.EntryRecord, denied map[string]struct{}, idx int) (*model.EntryRecord, error) {
	n := len(entries)
	for step := 0; step < n; step++ {
		i := idx - step
		if i < 0 {
			i += n
		}
		if !isDenied(denied, entries[i].Buyer) {
			return entries[i], nil
		}
	}
	// 账本与随机数不一致，本次结算失败，留给重试或紧急通道
	return nil, ErrWinnerNotFound
}

// DenyList 构造拒绝名单 (地址比较不区分大小写)
func DenyList(addrs ...string) map[string]struct{} {
	denied := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		if a == "" {
			continue
		}
		denied[strings.ToLower(a)] = struct{}{}
	}
	return denied
}

func isDenied(denied map[string]struct{}, addr string) bool {
	_, ok := denied[strings.ToLower(addr)]
	return ok
}
