package db

import (
	"DSync-Ops/internal/helpers"
	"fmt"

	"github.com/coocood/freecache"
)

type CacheGlobal struct {
	CacheInstance *freecache.Cache
	CacheSize     int
}

var Cache CacheGlobal
var DefaultExpire = 300 // 默认5分钟过期

// InitCache 初始化内存缓存
func InitCache() {
	cacheSize := helpers.GlobalConfig.CacheSize
	Cache = CacheGlobal{
		CacheInstance: freecache.NewCache(cacheSize),
		CacheSize:     cacheSize,
	}
	if helpers.AppLogger != nil {
		helpers.AppLogger.Info("成功初始化内存缓存组件")
	}
}

// BackupJobCacheKey 备份任务状态轮询接口的缓存key
func BackupJobCacheKey(id uint) string {
	return fmt.Sprintf("backup:job:%d", id)
}

// Set expire设置为-1则代表取默认值
func (c *CacheGlobal) Set(key string, value []byte, expire int) {
	if c.CacheInstance == nil {
		return
	}
	keyHash := helpers.MD5Hash(key)
	keyBytes := []byte(keyHash)
	if expire == -1 {
		expire = DefaultExpire
	}
	c.CacheInstance.Set(keyBytes, value, expire)
}

func (c *CacheGlobal) Get(key string) []byte {
	if c.CacheInstance == nil {
		return nil
	}
	keyHash := helpers.MD5Hash(key)
	keyBytes := []byte(keyHash)
	value, err := c.CacheInstance.Get(keyBytes)
	if err != nil {
		return nil
	}
	return value
}

func (c *CacheGlobal) Del(key string) {
	if c.CacheInstance == nil {
		return
	}
	keyHash := helpers.MD5Hash(key)
	c.CacheInstance.Del([]byte(keyHash))
}
