// Package tcp 实现基于内核 TCP 的帧连接
//
// TCP 没有 SCTP 的消息边界与多流，这里用一个小帧格式承载：
//
//	+--------+----------+-------+-------------+---------+
//	| stream | protocol | flags | length      | payload |
//	| u16 BE | u32 BE   | u8    | uvarint     |         |
//	+--------+----------+-------+-------------+---------+
//
// flags 低两位为 complete/unordered，最高位标记控制帧。
// 连接建立后双方各发送一个 hello 控制帧交换流数量，
// 协商结果为 入站=min(本端入站, 对端出站)、出站=min(本端出站, 对端入站)。
//
// 对端正常关闭（EOF）映射为 ErrPeerShutdown，复位等其他读写失败映射为
// ErrConnectionLost；超过接收缓冲区的帧被跳过并返回非致命的 ErrFrameTooLarge。
package tcp
