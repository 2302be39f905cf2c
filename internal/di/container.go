package di

import (
	"go.uber.org/dig"
)

// InitContainer 创建依赖注入容器
func InitContainer() *dig.Container {
	return dig.New()
}
