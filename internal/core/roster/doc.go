// Package roster 提供名册持久化实现
//
//   - MemoryStore：进程内保存，测试与无持久化场景使用
//   - FileStore：JSON 文件，写入临时文件后原子替换
package roster
