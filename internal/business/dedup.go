package business

// DedupStatus 消息去重标记状态
type DedupStatus int

const (
	// DedupNew 首次投递，已写入处理中标记
	DedupNew DedupStatus = iota
	// DedupInProgress 另一次投递正在处理
	DedupInProgress
	// DedupDone 已处理成功
	DedupDone
)

func (s DedupStatus) String() string {
	switch s {
	case DedupNew:
		return "new"
	case DedupInProgress:
		return "in_progress"
	case DedupDone:
		return "done"
	default:
		return "unknown"
	}
}
