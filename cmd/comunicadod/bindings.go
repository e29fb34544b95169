package main

import (
	"github.com/olafkfreund/comunicado-sub000/internal/host"
	"github.com/olafkfreund/comunicado-sub000/internal/keybind"
)

func keybindFormatFor(path string) (keybind.Format, error) {
	return keybind.FormatForPath(path)
}

func importBindings(h *host.Host, data []byte, format keybind.Format, replace bool) error {
	return keybind.Import(h.Bindings, data, format, replace)
}
