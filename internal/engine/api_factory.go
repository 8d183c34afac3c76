package engine

import (
	"fmt"

	"github.com/nkkko/textai/internal/api"
	chiapi "github.com/nkkko/textai/internal/api/chi"
	"github.com/nkkko/textai/internal/config"
	"github.com/nkkko/textai/internal/domain"
)

// NewAPIEngine creates the host HTTP surface for the configured framework
func NewAPIEngine(cfg *config.Config, host domain.HostService) (domain.APIEngine, error) {
	switch cfg.Server.Framework {
	case "chi", "":
		return chiapi.NewChiAPI(cfg.ToChiAPIConfig(), host), nil
	case "fiber":
		return api.NewAPI(cfg.ToAPIConfig(), host), nil
	default:
		return nil, fmt.Errorf("unsupported server framework: %s", cfg.Server.Framework)
	}
}
