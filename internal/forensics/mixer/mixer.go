// Package mixer flags wallet addresses matching a known mixer service,
// grounded on the original check_mixer_flags set-membership check.
package mixer

import (
	"strings"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

// Flag reports whether addr is a known mixer and, if so, which one.
func Flag(cfg *config.Config, addr string) model.MixerFlag {
	lower := strings.ToLower(addr)
	if _, ok := cfg.KnownMixers[lower]; ok {
		mixerType := "Tornado Cash"
		return model.MixerFlag{Address: lower, IsMixer: true, MixerType: &mixerType}
	}
	return model.MixerFlag{Address: lower, IsMixer: false}
}

// FlagAll flags every address in addrs, returning only the ones that
// matched a known mixer.
func FlagAll(cfg *config.Config, addrs []string) []model.MixerFlag {
	var out []model.MixerFlag
	for _, a := range addrs {
		f := Flag(cfg, a)
		if f.IsMixer {
			out = append(out, f)
		}
	}
	return out
}
