package kubernetes

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	sigsyaml "sigs.k8s.io/yaml"
)

const fieldManager = "app-bundler"

var _ port.ClusterApplier = (*Applier)(nil)

// Applier 通过 server-side apply 下发 manifest 中的对象。
type Applier struct {
	client  kubernetes.Interface
	dynamic dynamic.Interface
	mapper  meta.RESTMapper
}

func NewApplier(client kubernetes.Interface, dyn dynamic.Interface, mapper meta.RESTMapper) *Applier {
	return &Applier{client: client, dynamic: dyn, mapper: mapper}
}

func (a *Applier) EnsureNamespace(ctx context.Context, namespace string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}
	_, err := a.client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("%w: %s", domain.ErrNamespaceExists, namespace)
	}
	if err != nil {
		return fmt.Errorf("create namespace %s: %w", namespace, err)
	}
	slog.Info("namespace created", "namespace", namespace)
	return nil
}

// Apply 按文档顺序逐个 apply，遇到第一个失败即返回。
// namespace 级对象的 metadata.namespace 会被改写为目标 namespace。
func (a *Applier) Apply(ctx context.Context, namespace string, manifest []byte) error {
	objs, err := decodeObjects(manifest)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		if err := a.applyObject(ctx, namespace, obj); err != nil {
			return fmt.Errorf("apply %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	return nil
}

func (a *Applier) applyObject(ctx context.Context, namespace string, obj *unstructured.Unstructured) error {
	gvk := obj.GroupVersionKind()
	mapping, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		// CRD 可能刚刚创建，刷新 discovery 缓存后重试一次
		if r, ok := a.mapper.(meta.ResettableRESTMapper); ok && meta.IsNoMatchError(err) {
			r.Reset()
			mapping, err = a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		}
		if err != nil {
			return err
		}
	}

	var ri dynamic.ResourceInterface
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		obj.SetNamespace(namespace)
		ri = a.dynamic.Resource(mapping.Resource).Namespace(namespace)
	} else {
		ri = a.dynamic.Resource(mapping.Resource)
	}

	_, err = ri.Apply(ctx, obj.GetName(), obj, metav1.ApplyOptions{FieldManager: fieldManager, Force: true})
	if err != nil {
		return err
	}
	slog.Info("object applied", "kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())
	return nil
}

// decodeObjects 把多文档 YAML 解码为 unstructured 对象，跳过空文档。
func decodeObjects(manifest []byte) ([]*unstructured.Unstructured, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))
	var objs []*unstructured.Unstructured
	for {
		doc, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read manifest: %v", domain.ErrInvalidInput, err)
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}
		data, err := sigsyaml.YAMLToJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: decode manifest: %v", domain.ErrInvalidInput, err)
		}
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			continue
		}
		obj := &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("%w: decode manifest: %v", domain.ErrInvalidInput, err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}
