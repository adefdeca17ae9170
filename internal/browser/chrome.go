// internal/browser/chrome.go
package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// ChromePathEnv overrides Chrome discovery.
const ChromePathEnv = "FAIRGAME_CHROME_PATH"

var pathNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
}

// FindChrome locates a Chrome or Chromium executable. An empty result
// leaves discovery to chromedp.
func FindChrome() string {
	for _, env := range []string{ChromePathEnv, "CHROME_PATH"} {
		path := os.Getenv(env)
		if path == "" {
			continue
		}
		if isExecutable(path) {
			log.Debug().Str("path", path).Str("env", env).Msg("Chrome found via environment")
			return path
		}
		log.Warn().Str("path", path).Str("env", env).Msg("Configured Chrome path is not executable")
	}

	for _, path := range chromeCandidates(runtime.GOOS, os.Getenv("HOME")) {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Chrome found at standard location")
			return path
		}
	}

	for _, name := range pathNames {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, falling back to chromedp default")
	return ""
}

func chromeCandidates(goos, home string) []string {
	switch goos {
	case "darwin":
		out := []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
		if home != "" {
			out = append(out, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"))
		}
		return out
	case "windows":
		var out []string
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if base == "" {
				continue
			}
			out = append(out,
				filepath.Join(base, `Google\Chrome\Application\chrome.exe`),
				filepath.Join(base, `Chromium\Application\chrome.exe`),
				filepath.Join(base, `Microsoft\Edge\Application\msedge.exe`),
			)
		}
		return out
	default:
		out := []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
		if home != "" {
			out = append(out, filepath.Join(home, ".local/share/flatpak/exports/bin/com.google.Chrome"))
		}
		return out
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
