package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// k8sNameRegex 匹配 DNS-1123 label：小写字母或数字开头结尾，只含小写字母、数字和连字符，长度 1-63。
var k8sNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidateK8sName 校验名称是否可安全用作 K8s 资源名，同时也是 bundle 目录名。
func ValidateK8sName(field, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if !k8sNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %s %q is not a valid k8s resource name", ErrInvalidInput, field, name)
	}
	return nil
}

// ValidateBundleKey 校验 bundle 的 (namespace, appname)，二者共同决定存储路径。
func ValidateBundleKey(namespace, appName string) error {
	if err := ValidateK8sName("namespace", namespace); err != nil {
		return err
	}
	return ValidateK8sName("appname", appName)
}

// ValidateArchiveName 校验 bundle 内的镜像归档文件名，防止路径穿越。
func ValidateArchiveName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: archive name %q is invalid", ErrInvalidInput, name)
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: archive name %q must not contain a path", ErrInvalidInput, name)
	}
	return nil
}
