package stage

import (
	"context"
)

// Handler describes the contract the stage runner needs from each stage.
type Handler interface {
	Name() string
	Run(context.Context) (*Summary, error)
	HealthCheck(context.Context) Health
}
