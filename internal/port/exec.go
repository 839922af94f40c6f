package port

import (
	"context"
	"io"
)

// Command 是一次外部命令调用，参数以列表形式传递，不经过 shell。
type Command struct {
	Name  string
	Args  []string
	Stdin io.Reader
}

// CommandResult 是命令执行后捕获的输出。
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner 同步执行外部命令。命令返回非零退出码时返回 *domain.CommandError。
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
}
