package httpapi

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/pkg/config"
)

// advertise announces the control api on the local network.
func advertise(cfg config.MDNS, addr net.Addr, tlsEnabled bool, version string, logger *zap.Logger) (func(), error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise non-tcp address %s", addr)
	}

	name := instanceName(cfg.Name)
	txt := []string{
		"path=/",
		"tls=" + strconv.FormatBool(tlsEnabled),
	}
	if version != "" {
		txt = append(txt, "version="+version)
	}

	server, err := zeroconf.Register(name, cfg.Service, cfg.Domain, tcpAddr.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}

	logger.Info("advertising control api via mdns",
		zap.String("name", name),
		zap.String("service", cfg.Service),
		zap.String("domain", cfg.Domain),
		zap.Int("port", tcpAddr.Port))

	return server.Shutdown, nil
}

func instanceName(name string) string {
	if name != "" {
		return name
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "wakelauncher"
	}

	return "wakelauncher on " + hostname
}
