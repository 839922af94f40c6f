package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrExternalCommand = errors.New("external command failed")
	ErrSampling        = errors.New("resource sampling failed")

	// 镜像名与端口错误都属于请求校验失败，统一按 400 处理。
	ErrInvalidImageName = fmt.Errorf("%w: invalid image name", ErrInvalidInput)
	ErrPortRange        = fmt.Errorf("%w: invalid node port", ErrInvalidInput)

	ErrBundleNotFound   = fmt.Errorf("bundle %w", ErrNotFound)
	ErrMetadataNotFound = fmt.Errorf("bundle metadata %w", ErrNotFound)
	ErrNamespaceExists  = fmt.Errorf("namespace %w", ErrAlreadyExists)
)

// PortError 描述 NodePort 映射校验失败，指出具体的内部端口。
type PortError struct {
	InternalPort string
	Reason       string
}

func (e *PortError) Error() string {
	return fmt.Sprintf("external port for internal port %s %s", e.InternalPort, e.Reason)
}

func (e *PortError) Unwrap() error { return ErrPortRange }

// CommandError 记录外部命令的失败信息。
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s: exit code %d: %s", e.Command, e.ExitCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Command, msg)
}

func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalCommand}
	}
	return []error{ErrExternalCommand, e.Err}
}
