// Package types 定义 go-assoc 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - frame.go   - Frame 载荷单元（不可变）
//   - enums.go   - AssociationType, IPChannelType, AssociationState
//   - config.go  - AssociationConfig, ServerConfig（Manager 工厂参数）
//   - roster.go  - RosterSnapshot（持久化交换格式）
//   - errors.go  - 公共错误定义
package types
