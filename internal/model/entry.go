package model

// EntryRecord 购票记录
// 对应数据库表 raffle_entries，按购买顺序追加，永不修改或删除。
// 记录序列把 [1, EntriesLength] 切分为连续不重叠的区间：
// 第 i 条记录拥有 (CumulativeEntries(i-1), CumulativeEntries(i)]，
// 追加时累计值单调递增，因此前缀和数组天然有序，无需重排。
type EntryRecord struct {
	ID                int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	RaffleID          int64  `gorm:"index:idx_raffle_entry,unique;not null" json:"raffle_id"`      // 抽奖 ID
	Index             int64  `gorm:"column:entry_index;index:idx_raffle_entry,unique;not null" json:"index"` // 抽奖内插入序号 (从 0 开始)
	Buyer             string `gorm:"type:varchar(42);index;not null" json:"buyer"`                 // 买家地址
	Entries           int64  `gorm:"type:bigint;not null" json:"entries"`                          // 本条记录授予的票数
	CumulativeEntries int64  `gorm:"type:bigint;not null" json:"cumulative_entries"`               // 含本条在内的前缀和
	FreeGrant         bool   `gorm:"not null;default:false" json:"free_grant"`                     // 是否为免费赠票
	CreatedAt         int64  `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`  // 创建时间 (毫秒)
}

// TableName 返回表名
func (EntryRecord) TableName() string {
	return "raffle_entries"
}

// BlockStart 返回本记录拥有区间的起点 (含)
func (e *EntryRecord) BlockStart() int64 {
	return e.CumulativeEntries - e.Entries + 1
}

// BlockEnd 返回本记录拥有区间的终点 (含)
func (e *EntryRecord) BlockEnd() int64 {
	return e.CumulativeEntries
}

// Contains 判断归一化随机数 r 是否落在本记录的区间内
func (e *EntryRecord) Contains(r int64) bool {
	return r >= e.BlockStart() && r <= e.BlockEnd()
}
