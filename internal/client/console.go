package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/any-hub/snw-hub/internal/transport"
)

// 交互提示文本。
const (
	Prompt         = "Enter command: "
	MsgExit        = "Exiting program!"
	MsgInvalid     = "Invalid command."
	MsgAwaiting    = "Awaiting server response."
	usagePutFormat = "Invalid command format. Usage: put <filename>"
	usageGetFormat = "Invalid command format. Usage: get <filename>"
)

// Commander 是控制台驱动的请求方，*Client 即满足该接口。
type Commander interface {
	Put(ctx context.Context, name string) (string, error)
	Get(ctx context.Context, name string) (*GetResult, error)
}

// Console 逐行读取命令并调用 Commander，直到 quit、输入结束或 ctx 取消。
type Console struct {
	cmd Commander
	in  *bufio.Scanner
	out io.Writer

	info *color.Color
	ok   *color.Color
	warn *color.Color
	fail *color.Color
}

// NewConsole 构造控制台；颜色是否生效由 fatih/color 根据终端自动判断。
func NewConsole(cmd Commander, in io.Reader, out io.Writer) *Console {
	return &Console{
		cmd:  cmd,
		in:   bufio.NewScanner(in),
		out:  out,
		info: color.New(color.FgCyan),
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed),
	}
}

// Run 执行交互循环。单条命令失败只打印原因，不会结束循环。
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(c.out, Prompt)
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}
		if quit := c.execute(ctx, c.in.Text()); quit {
			fmt.Fprintln(c.out, MsgExit)
			return nil
		}
	}
}

// execute 处理一行输入，返回是否退出。
func (c *Console) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		c.warn.Fprintln(c.out, MsgInvalid)
		return false
	}

	switch parts[0] {
	case "quit":
		return true
	case "put":
		if len(parts) != 2 {
			c.warn.Fprintln(c.out, usagePutFormat)
			return false
		}
		c.put(ctx, parts[1])
	case "get":
		if len(parts) != 2 {
			c.warn.Fprintln(c.out, usageGetFormat)
			return false
		}
		c.get(ctx, parts[1])
	default:
		c.warn.Fprintln(c.out, MsgInvalid)
	}
	return false
}

func (c *Console) put(ctx context.Context, name string) {
	c.info.Fprintln(c.out, MsgAwaiting)
	resp, err := c.cmd.Put(ctx, name)
	switch {
	case errors.Is(err, ErrLocalFileMissing):
		c.fail.Fprintf(c.out, "File not found: %s\n", name)
	case err != nil:
		c.fail.Fprintln(c.out, describe(err))
	case resp == "":
		c.ok.Fprintf(c.out, "File %s sent.\n", name)
	default:
		c.ok.Fprintf(c.out, "Server response: %s\n", resp)
	}
}

func (c *Console) get(ctx context.Context, name string) {
	result, err := c.cmd.Get(ctx, name)
	switch {
	case errors.Is(err, transport.ErrNotFound):
		c.warn.Fprintln(c.out, stream.StatusNotFound)
	case err != nil:
		c.fail.Fprintln(c.out, describe(err))
	default:
		c.ok.Fprintf(c.out, "File %s received.\n", name)
		if result.Feedback != "" {
			c.info.Fprintf(c.out, "Server response: %s\n", result.Feedback)
		}
	}
}

// describe 把传输错误翻译成面向用户的一句话。
func describe(err error) string {
	switch {
	case errors.Is(err, snw.ErrHandshakeFailed):
		return "Failed to receive ACK for LEN. Terminating."
	case errors.Is(err, snw.ErrNoFIN):
		return "Did not receive FIN. Terminating."
	case errors.Is(err, snw.ErrTimeout):
		return "Did not receive data in time. Terminating."
	}
	return fmt.Sprintf("Error: %v", err)
}
