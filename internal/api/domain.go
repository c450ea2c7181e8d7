package api

import (
	"github.com/JaimeStill/courier/internal/bundles"
	"github.com/JaimeStill/courier/internal/config"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Bundles bundles.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime, cfg *config.Config) *Domain {
	return &Domain{
		Bundles: bundles.New(
			runtime.Database.Connection(),
			runtime.Storage,
			runtime.Preprocess,
			runtime.Logger,
			runtime.Pagination,
			cfg.Preprocess.Depth(),
			cfg.Preprocess.ScratchDir,
		),
	}
}
