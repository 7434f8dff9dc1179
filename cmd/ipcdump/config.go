package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/ipcmsg/ipc"
)

type fileConfig struct {
	Descriptors bool `toml:"descriptors"`
	AckCookie   bool `toml:"ack_cookie"`
	Trace       bool `toml:"trace"`
}

// loadLayout reads the wire layout for the capture being dumped. Absent
// keys keep the default POSIX layout.
func loadLayout(path string) (ipc.Layout, error) {
	layout := ipc.DefaultLayout()
	if path == "" {
		return layout, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ipc.Layout{}, fmt.Errorf("load layout config: %w", err)
	}

	if meta.IsDefined("descriptors") {
		layout.Descriptors = raw.Descriptors
	}
	if meta.IsDefined("ack_cookie") {
		layout.AckCookie = raw.AckCookie
	}
	if meta.IsDefined("trace") {
		layout.Trace = raw.Trace
	}

	if err := layout.Validate(); err != nil {
		return ipc.Layout{}, fmt.Errorf("layout config %s: %w", path, err)
	}
	return layout, nil
}
