package view

import "go.uber.org/fx"

var Module = fx.Module("view",
	fx.Provide(func() (*Renderer, error) {
		return NewRenderer(defaultCacheSize)
	}),
)
