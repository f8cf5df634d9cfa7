// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device probes the rendering devices available on the host.
package device

import "fmt"

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int      `json:"id"`
	VendorID      int      `json:"vendorId"`
	Vendor        string   `json:"vendor"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	APIVersion    string   `json:"apiVersion"`
	DriverVersion string   `json:"driverVersion"`
	Invalid       bool     `json:"invalid,omitempty"`
	Extensions    []string `json:"extensions"`
	Layers        []string `json:"layers"`
	Memory        uint64   `json:"memory"`
}

// Device describes a non-concrete rendering device
type Device interface {
	PhysicalDevices() []PhysicalDeviceInfo
	Destroy()
}

// FormatVersion unpacks a version number packed as major<<22 | minor<<12 | patch.
func FormatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

var vendors = map[int]string{
	0x1002:  "AMD",
	0x1010:  "ImgTec",
	0x10de:  "NVIDIA",
	0x13b5:  "ARM",
	0x5143:  "Qualcomm",
	0x8086:  "Intel",
	0x10005: "Mesa",
}

// VendorName returns the vendor registered for a PCI vendor id.
func VendorName(id int) string {
	if name, ok := vendors[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", id)
}

// DeviceType names a physical device type as numbered by Vulkan.
func DeviceType(t int) string {
	switch t {
	case 1:
		return "integrated"
	case 2:
		return "discrete"
	case 3:
		return "virtual"
	case 4:
		return "cpu"
	}
	return "other"
}
