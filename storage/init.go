package storage

import (
	"ContactBook/storage/database"
	"ContactBook/storage/mq"
	"ContactBook/storage/redis"
)

// Init 统一初始化存储层，Redis 和 MQ 按配置开关跳过
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	if err := mq.Init(); err != nil {
		return err
	}

	return nil
}
