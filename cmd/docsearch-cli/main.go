package main

import (
	"os"

	"github.com/aihub/docsearch/app/bootstrap"
	"github.com/aihub/docsearch/internal/cli"
	"github.com/aihub/docsearch/internal/services"
)

func main() {
	cli.SetServiceLoader(func() (cli.DocumentService, func(), error) {
		app, err := bootstrap.Init()
		if err != nil {
			return nil, nil, err
		}

		var svc *services.DocumentService
		if err := app.Container.Invoke(func(s *services.DocumentService) {
			svc = s
		}); err != nil {
			app.Shutdown()
			return nil, nil, err
		}
		return svc, app.Shutdown, nil
	})

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
