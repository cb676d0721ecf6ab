package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Optional lifecycle hooks. LoadModule runs Configure, Provision and
// Validate in that order; App.Start and App.Stop run the rest.

// Configurable modules decode their own section of the modules map. It is
// only called when the section exists.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open resources and publish or look
// up services on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check the provisioned configuration. Validate must not
// have side effects.
type Validator interface {
	Validate() error
}

// Starter modules launch pollers, listeners and subscriptions. Start runs
// once every module has been provisioned.
type Starter interface {
	Start() error
}

// Stopper modules release what Start acquired. Modules stop in reverse
// start order, bounded by ctx.
type Stopper interface {
	Stop(ctx context.Context) error
}
