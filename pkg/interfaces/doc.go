// Package interfaces 定义 go-assoc 的公共接口
//
// 一个接口文件对应一个实现目录：
//   - association.go  - Association 与 AssociationListener（internal/core/association）
//   - server.go       - Server 与 ServerListener（internal/core/server）
//   - management.go   - Management 管理 API（internal/core/manager）
//   - roster.go       - RosterStore 名册持久化（internal/core/roster）
//
// 本包只依赖 pkg/types，实现包依赖本包，避免循环引用。
package interfaces
