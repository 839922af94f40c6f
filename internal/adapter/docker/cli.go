package docker

import (
	"context"
	"strings"

	"github.com/chiwei-platform/app-bundler/internal/port"
)

var _ port.ImageEngine = (*CLIEngine)(nil)

// CLIEngine 通过 docker 命令行操作本机 daemon。
type CLIEngine struct {
	runner port.CommandRunner
	binary string
}

func NewCLIEngine(runner port.CommandRunner, binary string) *CLIEngine {
	if binary == "" {
		binary = "docker"
	}
	return &CLIEngine{runner: runner, binary: binary}
}

// Login 通过 --password-stdin 传递密码，避免出现在进程参数中。未配置用户名时跳过。
func (e *CLIEngine) Login(ctx context.Context, creds port.RegistryCredentials) error {
	if creds.Username == "" {
		return nil
	}
	_, err := e.runner.Run(ctx, port.Command{
		Name:  e.binary,
		Args:  []string{"login", "-u", creds.Username, "--password-stdin", creds.Registry},
		Stdin: strings.NewReader(creds.Password),
	})
	return err
}

// 镜像参数前统一加 "--"，不会被解析为 docker 选项。
func (e *CLIEngine) Pull(ctx context.Context, image string) error {
	return e.run(ctx, "pull", "--", image)
}

func (e *CLIEngine) Save(ctx context.Context, image, archivePath string) error {
	return e.run(ctx, "save", "-o", archivePath, "--", image)
}

func (e *CLIEngine) Load(ctx context.Context, archivePath string) ([]string, error) {
	res, err := e.runner.Run(ctx, port.Command{Name: e.binary, Args: []string{"load", "-i", archivePath}})
	if err != nil {
		return nil, err
	}
	return ParseLoadReport(res.Stdout)
}

func (e *CLIEngine) Tag(ctx context.Context, source, target string) error {
	return e.run(ctx, "tag", "--", source, target)
}

func (e *CLIEngine) Push(ctx context.Context, image string) error {
	return e.run(ctx, "push", "--", image)
}

func (e *CLIEngine) run(ctx context.Context, args ...string) error {
	_, err := e.runner.Run(ctx, port.Command{Name: e.binary, Args: args})
	return err
}
