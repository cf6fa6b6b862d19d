package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	kkdai "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

const clientTimeout = 60 * time.Second

// NewClient builds a kkdai client, optionally routed through an http(s), socks4 or
// socks5 proxy. An unusable proxy falls back to a direct connection.
func NewClient(proxyStr string) *kkdai.Client {
	transport := proxyTransport(proxyStr)
	if transport == nil {
		return &kkdai.Client{HTTPClient: &http.Client{Timeout: clientTimeout}}
	}
	return &kkdai.Client{HTTPClient: &http.Client{Timeout: clientTimeout, Transport: transport}}
}

func proxyTransport(proxyStr string) *http.Transport {
	logger := log.With().Str("module", "youtube").Logger()

	if proxyStr == "" {
		return nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid proxy, going direct")
		return nil
	}

	switch proxyURL.Scheme {
	case "http", "https":
		logger.Info().Str("proxy", proxyURL.Host).Msg("using HTTP proxy")
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}

	case "socks4", "socks5":
		// socks4 is registered with x/net/proxy by the go-socks4 import
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			logger.Warn().Err(err).Str("scheme", proxyURL.Scheme).Msg("proxy dialer error, going direct")
			return nil
		}
		logger.Info().Str("proxy", proxyURL.Host).Str("scheme", proxyURL.Scheme).Msg("using SOCKS proxy")
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}

	default:
		logger.Warn().Str("scheme", proxyURL.Scheme).Msg("unsupported proxy scheme, going direct")
		return nil
	}
}
