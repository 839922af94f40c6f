// Package shell 执行外部命令（docker、kubectl），参数以 argv 列表传递，不经过 shell 解释。
package shell

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
)

var _ port.CommandRunner = (*Runner)(nil)

type Runner struct {
	// Env 追加到子进程环境变量，格式为 KEY=VALUE。
	Env []string
}

func NewRunner(env ...string) *Runner {
	return &Runner{Env: env}
}

func (r *Runner) Run(ctx context.Context, c port.Command) (*port.CommandResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}

	start := time.Now()
	err := cmd.Run()
	result := &port.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	slog.Debug("command finished",
		"command", describe(c),
		"exit_code", result.ExitCode,
		"duration", time.Since(start).String(),
	)
	if err != nil {
		cmdErr := &domain.CommandError{
			Command:  describe(c),
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			cmdErr.Err = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cmdErr.Err = ctxErr
		}
		return result, cmdErr
	}
	return result, nil
}

// describe 返回用于日志和错误信息的命令描述，只包含程序名和子命令。
func describe(c port.Command) string {
	parts := []string{c.Name}
	for _, a := range c.Args {
		if strings.HasPrefix(a, "-") {
			break
		}
		parts = append(parts, a)
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, " ")
}
