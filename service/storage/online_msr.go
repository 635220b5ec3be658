package storage

import (
	"sync"

	errs "MTalk/tools/errs"
)

// 全局单例
var (
	manager     *OnlineStore
	managerOnce sync.Once
)

// InitManager 初始化全局在线镜像，只能调用一次。
// 后续再次调用返回同一个实例。
func InitManager(conf OnlineConfig) (*OnlineStore, error) {
	managerOnce.Do(func() {
		manager = newOnlineStore(conf)
	})
	if manager == nil {
		return nil, errs.ErrStorage.WithDetail("online store init failed")
	}
	return manager, nil
}

// GetManager 获取全局在线镜像，没初始化时返回 nil
func GetManager() *OnlineStore {
	return manager
}
