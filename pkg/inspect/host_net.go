package inspect

import (
	"context"
	"fmt"
	"net"

	"github.com/cgast/idemverify/pkg/resource"
)

// InterfaceInfo is what the host knows about one network interface.
type InterfaceInfo struct {
	Name         string
	HardwareAddr string
	MTU          int
	Flags        string
	Addrs        []*net.IPNet
}

// Interfaces looks up network interfaces by device name.
type Interfaces interface {
	Lookup(device string) (InterfaceInfo, error)
}

// SystemInterfaces reads interfaces through the net package.
type SystemInterfaces struct{}

func (SystemInterfaces) Lookup(device string) (InterfaceInfo, error) {
	iface, err := net.InterfaceByName(device)
	if err != nil {
		return InterfaceInfo{}, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return InterfaceInfo{}, fmt.Errorf("addresses of %s: %w", device, err)
	}
	info := InterfaceInfo{
		Name:         iface.Name,
		HardwareAddr: iface.HardwareAddr.String(),
		MTU:          iface.MTU,
		Flags:        iface.Flags.String(),
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			info.Addrs = append(info.Addrs, ipn)
		}
	}
	return info, nil
}

// inspectInterface reports the device's link properties and the IPv4
// address assigned to it. When the target address (ref.Name) is among the
// device's addresses it is the one reported. A missing or short mask is
// reported as none.
func inspectInterface(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	device, _ := ref.Arg(resource.ArgDevice)
	info, err := h.Interfaces.Lookup(device)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", device, err)
	}

	attrs := resource.Attributes{
		"target":    ref.Name,
		"device":    info.Name,
		"hwaddr":    nil,
		"mtu":       info.MTU,
		"inet_addr": nil,
		"mask":      nil,
		"flags":     info.Flags,
	}
	if info.HardwareAddr != "" {
		attrs["hwaddr"] = info.HardwareAddr
	}

	if addr := pickIPv4(info.Addrs, net.ParseIP(ref.Name)); addr != nil {
		attrs["inet_addr"] = addr.IP.String()
		if addr.Mask != nil {
			attrs["mask"] = net.IP(addr.Mask).String()
		}
	}
	return attrs, nil
}

func pickIPv4(addrs []*net.IPNet, target net.IP) *net.IPNet {
	var first *net.IPNet
	for _, a := range addrs {
		ip4 := a.IP.To4()
		if ip4 == nil {
			continue
		}
		v4 := &net.IPNet{IP: ip4}
		if len(a.Mask) >= net.IPv4len {
			v4.Mask = a.Mask[len(a.Mask)-net.IPv4len:]
		}
		if target != nil && ip4.Equal(target) {
			return v4
		}
		if first == nil {
			first = v4
		}
	}
	return first
}
