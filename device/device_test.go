// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/tetra/device"
)

func TestFormatVersion(t *testing.T) {
	c := qt.New(t)
	c.Assert(device.FormatVersion(1<<22|2<<12|131), qt.Equals, "1.2.131")
	c.Assert(device.FormatVersion(0), qt.Equals, "0.0.0")
}

func TestVendorName(t *testing.T) {
	c := qt.New(t)
	c.Assert(device.VendorName(0x10de), qt.Equals, "NVIDIA")
	c.Assert(device.VendorName(0x1234), qt.Equals, "0x1234")
}

func TestDeviceType(t *testing.T) {
	c := qt.New(t)
	c.Assert(device.DeviceType(2), qt.Equals, "discrete")
	c.Assert(device.DeviceType(0), qt.Equals, "other")
}
