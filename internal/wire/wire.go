//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/devasignhq/devasign-api-sub002/internal/app"
)

func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(AppSet)
	return &app.App{}, nil, nil
}

func InitializeToolkit(ctx context.Context) (*Toolkit, func(), error) {
	wire.Build(ToolkitSet)
	return &Toolkit{}, nil, nil
}
