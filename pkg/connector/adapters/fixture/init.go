package fixture

import (
	"github.com/talentsync/talentsync/pkg/connector/core"
	"github.com/talentsync/talentsync/pkg/connector/registry"
)

func init() {
	registry.MustRegister(core.KindFixture, New)
}
