package controllers

import (
	"go.uber.org/dig"

	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/middleware"
	"github.com/aihub/docsearch/internal/services"
)

// ControllerFactory 控制器工厂
type ControllerFactory struct {
	container *dig.Container
}

// NewControllerFactory 创建控制器工厂
func NewControllerFactory(container *dig.Container) *ControllerFactory {
	return &ControllerFactory{
		container: container,
	}
}

// CreateDocumentController 创建文档控制器
func (f *ControllerFactory) CreateDocumentController() (*DocumentController, error) {
	var controller *DocumentController

	err := f.container.Invoke(func(ds *services.DocumentService, cfg *config.Config) {
		controller = NewDocumentController(ds, cfg.Server.MaxUploadSize)
	})
	if err != nil {
		return nil, err
	}

	return controller, nil
}

// CreateSearchController 创建检索控制器
func (f *ControllerFactory) CreateSearchController() (*SearchController, error) {
	var docService *services.DocumentService

	err := f.container.Invoke(func(ds *services.DocumentService) {
		docService = ds
	})
	if err != nil {
		return nil, err
	}

	return NewSearchController(docService), nil
}

// CreateHealthController 创建健康检查控制器
func (f *ControllerFactory) CreateHealthController() (*HealthController, error) {
	var manager *middleware.MiddlewareManager

	err := f.container.Invoke(func(m *middleware.MiddlewareManager) {
		manager = m
	})
	if err != nil {
		return nil, err
	}

	return NewHealthController(manager), nil
}
