package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/moccorine/legacy-kuzuha-php-sub000/internal/logging"
)

const defaultMdnsService = "_kuzuha-bbs._tcp"

// advertiseMdns は掲示板のHTTPエンドポイントをLANに広告する。
// 常設サーバの無い小規模運用で、クライアントがアドレス設定なしで
// 掲示板を見つけられるようにするためのもの。
func advertiseMdns(httpAddr, service string) (stop func(), err error) {
	service = strings.TrimSpace(service)
	if service == "" {
		service = defaultMdnsService
	}

	port, err := extractTCPPort(httpAddr)
	if err != nil {
		return func() {}, err
	}

	txt := []string{"endpoint=http://" + httpAddr}
	srv, err := zeroconf.Register("kuzuha-bbs", service, "local.", port, txt, nil)
	if err != nil {
		return func() {}, err
	}
	logging.Info.Printf("mdns advertising: service=%s addr=%s", service, httpAddr)
	return func() { srv.Shutdown() }, nil
}

func extractTCPPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("mdns: cannot parse listen address %q: %w", addr, err)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p <= 0 || p > 65535 {
		return 0, fmt.Errorf("mdns: bad port in %q", addr)
	}
	return p, nil
}
