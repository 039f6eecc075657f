package meterreading

import (
	"github.com/smallbiznis/rentbill/internal/meterreading/repository"
	"github.com/smallbiznis/rentbill/internal/meterreading/service"
	"go.uber.org/fx"
)

var Module = fx.Module("meterreading.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
