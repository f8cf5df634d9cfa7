// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"errors"

	"github.com/devblok/tetra/device"
)

func devices(e *env, args []string) error {
	fs := e.flags("devices")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return errors.New("devices takes no arguments")
	}

	dev, err := device.NewVulkanDevice(device.DefaultVulkanApplicationInfo)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dev.PhysicalDevices())
}
