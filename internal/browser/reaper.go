package browser

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

var browserNames = []string{"chrome", "chromium", "msedge", "headless_shell"}

// ReapStray kills browser processes still attached to profileDir, which
// would otherwise hold the profile lock and block the next launch. It
// returns the number of processes killed.
func ReapStray(ctx context.Context, profileDir string) int {
	if profileDir == "" {
		return 0
	}
	abs, err := filepath.Abs(profileDir)
	if err != nil {
		abs = profileDir
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Could not list processes")
		return 0
	}

	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !isBrowserName(name) {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || !usesProfile(cmdline, abs, profileDir) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			log.Debug().Err(err).Int32("pid", p.Pid).Msg("Could not kill browser process")
			continue
		}
		killed++
	}
	return killed
}

func isBrowserName(name string) bool {
	name = strings.ToLower(name)
	for _, b := range browserNames {
		if strings.Contains(name, b) {
			return true
		}
	}
	return false
}

func usesProfile(cmdline string, dirs ...string) bool {
	for _, dir := range dirs {
		if strings.Contains(cmdline, "--user-data-dir="+dir) {
			return true
		}
	}
	return false
}
