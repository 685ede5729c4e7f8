package tcp

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"

	"github.com/multiformats/go-varint"
)

const (
	headerSize = 7

	flagComplete  byte = 0x01
	flagUnordered byte = 0x02
	flagControl   byte = 0x80
)

// rawFrame 线上帧
type rawFrame struct {
	stream  uint16
	ppid    uint32
	flags   byte
	payload []byte
}

// codec 帧编解码
//
// 读写各自只由一个 goroutine 使用。
type codec struct {
	r       *bufio.Reader
	w       io.Writer
	maxSize int
	hdr     [headerSize + varint.MaxLenUvarint63]byte
}

func newCodec(rw io.ReadWriter, maxSize int) *codec {
	return &codec{
		r:       bufio.NewReaderSize(rw, 32*1024),
		w:       rw,
		maxSize: maxSize,
	}
}

// writeFrame 头部与载荷经 net.Buffers 一次写出
func (c *codec) writeFrame(f rawFrame) error {
	hdr := c.hdr[:headerSize]
	binary.BigEndian.PutUint16(hdr[0:2], f.stream)
	binary.BigEndian.PutUint32(hdr[2:6], f.ppid)
	hdr[6] = f.flags
	n := varint.PutUvarint(c.hdr[headerSize:], uint64(len(f.payload)))
	hdr = c.hdr[:headerSize+n]

	bufs := net.Buffers{hdr, f.payload}
	_, err := bufs.WriteTo(c.w)
	return err
}

// readFrame 读取一帧
//
// 帧头起始处的 io.EOF 原样返回，其余截断返回 io.ErrUnexpectedEOF。
// 超长帧被跳过，返回 errOversize 与其长度。
func (c *codec) readFrame() (rawFrame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return rawFrame{}, err
	}
	length, err := varint.ReadUvarint(c.r)
	if err != nil {
		return rawFrame{}, unexpected(err)
	}

	f := rawFrame{
		stream: binary.BigEndian.Uint16(hdr[0:2]),
		ppid:   binary.BigEndian.Uint32(hdr[2:6]),
		flags:  hdr[6],
	}

	if length > uint64(c.maxSize) {
		if _, err := io.CopyN(io.Discard, c.r, int64(length)); err != nil {
			return rawFrame{}, unexpected(err)
		}
		return rawFrame{}, &oversizeError{size: length}
	}

	f.payload = make([]byte, length)
	if _, err := io.ReadFull(c.r, f.payload); err != nil {
		return rawFrame{}, unexpected(err)
	}
	return f, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

type oversizeError struct {
	size uint64
}

func (e *oversizeError) Error() string {
	return "oversize frame"
}
