package modules

import (
	"github.com/iota-uz/recruit-sla/modules/milestones"
	"github.com/iota-uz/recruit-sla/pkg/application"
)

var BuiltInModules = []application.Module{
	milestones.NewModule(nil),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
