package main

import (
	"strings"
)

var opts struct {
	Node struct {
		Host       string            `long:"host" env:"HOST" required:"true" description:"host name or ip advertised to other nodes"`
		Port       int               `long:"port" env:"PORT" default:"4000" description:"clustering port (grpc health server)"`
		ID         string            `long:"id" env:"ID" description:"member id"`
		Domain     string            `long:"domain" env:"DOMAIN" description:"cluster domain"`
		Properties map[string]string `long:"property" key-value-delimiter:"=" description:"member property, can be repeated"`
	} `group:"node" namespace:"node" env-namespace:"NODE"`

	GRPC struct {
		BindAddr string `long:"bind-addr" env:"BIND_ADDR" default:":4000" description:"address to bind grpc server"`
		Service  string `long:"service" env:"SERVICE" default:"peerdir" description:"health service name"`
	} `group:"grpc" namespace:"grpc" env-namespace:"GRPC"`

	Gossip struct {
		BindAddr string `long:"bind-addr" env:"BIND_ADDR" default:"0.0.0.0" description:"address to bind gossip listener"`
		BindPort int    `long:"bind-port" env:"BIND_PORT" default:"7946" description:"gossip port"`
		Join     string `long:"join" env:"JOIN" description:"comma-separated list of gossip addresses to join"`
	} `group:"gossip" namespace:"gossip" env-namespace:"GOSSIP"`

	Detector struct {
		ProbeInterval int `long:"probe-interval" env:"PROBE_INTERVAL" default:"1000" description:"probe interval (ms)"`
		ProbeTimeout  int `long:"probe-timeout" env:"PROBE_TIMEOUT" default:"2000" description:"probe timeout (ms)"`
		SuspendFor    int `long:"suspend-for" env:"SUSPEND_FOR" default:"30000" description:"suspension after a failed probe (ms)"`
		Fanout        int `long:"fanout" env:"FANOUT" default:"3" description:"members probed per round"`
	} `group:"detector" namespace:"detector" env-namespace:"DETECTOR"`

	Verbose bool `long:"verbose" env:"VERBOSE" description:"verbose mode"`
}

func parseAddrs(addrs string) []string {
	sl := strings.Split(addrs, ",")
	res := make([]string, 0, len(sl))

	for _, addr := range sl {
		trimmed := strings.TrimSpace(addr)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}

	return res
}
