//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/tetragramaton/rc-mission/internal/fleet"
)

func InitMainHandler(flags Flags) (*MainHandler, error) {
	wire.Build(
		NewMainHandler,
		ProvideConfig,
		ProvideLogger,
		ProvideMqttClient,
		fleet.NewRegistry,
	)
	return nil, nil // wire will generate the result
}
