package cli

import (
	"context"
	"errors"

	"github.com/aihub/docsearch/internal/knowledge"
	"github.com/aihub/docsearch/internal/services"
	"github.com/spf13/cobra"
)

// DocumentService 命令行使用的文档服务
type DocumentService interface {
	Upload(ctx context.Context, filename string, data []byte) (*services.UploadResult, error)
	ListDocuments(ctx context.Context) ([]knowledge.Document, error)
	Search(ctx context.Context, query string, limit int) (*services.SearchResults, error)
	Ask(ctx context.Context, query string, limit int) (*services.AskResult, error)
}

// ServiceLoader 按需初始化文档服务，返回的函数用于释放资源
type ServiceLoader func() (DocumentService, func(), error)

var (
	loadService     ServiceLoader
	documentService DocumentService
	releaseService  func()
)

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Ingest PDF documents and search them",
	Long: `docsearch ingests PDF documents into the knowledge store and answers
queries with vector search, falling back to cosine and substring search.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if releaseService != nil {
			releaseService()
			releaseService = nil
		}
	},
}

// SetServiceLoader 设置文档服务的初始化方式
func SetServiceLoader(loader ServiceLoader) {
	loadService = loader
}

// Execute 运行根命令
func Execute() error {
	return rootCmd.Execute()
}

// requireService 首次调用时初始化服务
func requireService() (DocumentService, error) {
	if documentService != nil {
		return documentService, nil
	}
	if loadService == nil {
		return nil, errors.New("document service not configured")
	}

	svc, release, err := loadService()
	if err != nil {
		return nil, err
	}
	documentService = svc
	releaseService = release
	return svc, nil
}
