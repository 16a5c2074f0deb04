//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
)

func InitMainHandler(flags Flags) (*MainHandler, func(), error) {
	wire.Build(
		NewMainHandler,
		ProvideConfig,
		ProvideLogger,
		ProvideMqttClient,
		ProvideModbusClient,
		ProvideBridge,
	)
	return nil, nil, nil // wire will generate the result
}
