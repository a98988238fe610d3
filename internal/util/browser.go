package util

import (
	"os/exec"
	"runtime"
)

// browserCommands 各平台打开 URL 的命令，按顺序尝试
func browserCommands(goos, url string) [][]string {
	switch goos {
	case "windows":
		// rundll32 在 Windows 7 上比 cmd /c start 稳定
		return [][]string{
			{"rundll32", "url.dll,FileProtocolHandler", url},
			{"explorer", url},
		}
	case "darwin":
		return [][]string{{"open", url}}
	}
	cmds := [][]string{{"xdg-open", url}}
	for _, b := range []string{"google-chrome", "firefox", "chromium-browser", "sensible-browser"} {
		cmds = append(cmds, []string{b, url})
	}
	return cmds
}

// OpenBrowser 用默认浏览器打开 url，失败时依次尝试备选命令
func OpenBrowser(url string) error {
	var err error
	for _, args := range browserCommands(runtime.GOOS, url) {
		if err = exec.Command(args[0], args[1:]...).Start(); err == nil {
			return nil
		}
	}
	return err
}
