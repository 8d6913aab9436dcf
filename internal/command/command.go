// Package command 解析控制通道上的请求行 "put <file>" / "get <file>"。
package command

import (
	"errors"
	"fmt"
	"strings"
)

// Op 是请求的操作类型。
type Op string

const (
	Get Op = "get"
	Put Op = "put"
)

// ErrInvalidCommand 表示请求行不符合 "<op> <fileName>" 格式。
var ErrInvalidCommand = errors.New("invalid command")

// Command 是一次解析后的文件请求，用完即弃。
type Command struct {
	Op   Op
	Name string
}

// Parse 解析请求行；动词区分大小写且必须恰好携带一个文件名。
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty request", ErrInvalidCommand)
	}
	op := Op(fields[0])
	if op != Get && op != Put {
		return Command{}, fmt.Errorf("%w: unknown operation %q", ErrInvalidCommand, fields[0])
	}
	if len(fields) != 2 {
		return Command{}, fmt.Errorf("%w: usage %s <filename>", ErrInvalidCommand, op)
	}
	return Command{Op: op, Name: fields[1]}, nil
}

// New 构造一条请求。
func New(op Op, name string) Command {
	return Command{Op: op, Name: name}
}

// String 还原请求行，缓存向源站转发时原样使用。
func (c Command) String() string {
	return string(c.Op) + " " + c.Name
}
