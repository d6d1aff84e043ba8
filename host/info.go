package host

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/odvcencio/meacode/bridge"
)

// Version is set at build time.
var Version = "dev"

func (h *Handler) infoCommands() []Command {
	return []Command{
		{
			Name:        bridge.CmdGetInfo,
			Description: "Platform, architecture and versions of the host.",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return h.Info(), nil
			},
		},
	}
}

// Info describes the running host.
func (h *Handler) Info() bridge.HostInfo {
	return bridge.HostInfo{
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUs:     runtime.NumCPU(),
		IsDev:    h.cfg.Dev,
		Versions: map[string]string{
			"go":      runtime.Version(),
			"meacode": Version,
		},
	}
}
