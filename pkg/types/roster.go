package types

// RosterSnapshot 关联/Server 名册的持久化交换格式
//
// 格式本身对核心不透明，由 RosterStore 实现负责编码。
type RosterSnapshot struct {
	Servers      []ServerConfig      `json:"servers"`
	Associations []RosterAssociation `json:"associations"`
	Settings     RosterSettings      `json:"settings"`
}

// RosterAssociation 持久化的关联条目
type RosterAssociation struct {
	AssociationConfig
	Started bool `json:"started,omitempty"`
}

// RosterSettings 持久化的全局设置
type RosterSettings struct {
	ConnectDelayMillis int64 `json:"connectDelayMillis"`
	WorkerThreads      int   `json:"workerThreads"`
	SingleThread       bool  `json:"singleThread"`
	MaxIOErrors        int   `json:"maxIOErrors"`
}
