// Package manager 实现关联管理器
//
// Manager 持有 Reactor、执行器池、多路复用器注册表以及 Server/关联名册，
// 是所有生命周期 API 的唯一入口。
//
// 名册是不可变快照，写操作在互斥锁下构造新快照并原子替换，读操作无锁。
// 所有 API 在调用方 goroutine 上同步完成参数校验与名册修改，I/O 通过
// 变更请求交给 reactor 异步执行。
//
// 名册变更后与停止时经 RosterStore 持久化，失败只记录日志。
package manager
