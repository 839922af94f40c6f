package service

import "github.com/moby/locker"

// BundleLocks 以 bundle 目录路径为键串行化访问。
// 导出、上传、下载与重新部署在读写同一目录期间都持有该锁。
type BundleLocks struct {
	l *locker.Locker
}

func NewBundleLocks() *BundleLocks {
	return &BundleLocks{l: locker.New()}
}

func (b *BundleLocks) lock(dir string) func() {
	b.l.Lock(dir)
	return func() { _ = b.l.Unlock(dir) }
}
