package tcp

import "github.com/dep2p/go-assoc/config"

func configWithStreams(in, out int) config.TransportConfig {
	return config.DefaultTransportConfig().WithStreams(in, out)
}
