//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// hotkey registration must happen on the main thread on macOS.
	mainthread.Init(run)
}
