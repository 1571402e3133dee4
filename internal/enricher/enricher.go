package enricher

import (
	"net"
	"strings"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Client describes who requested a conversion
type Client struct {
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     string
	Country        string
	IP             string
}

type Enricher struct {
	geoIP *geoip2.Reader
}

func NewEnricher(geoIPPath string) *Enricher {
	var geoIP *geoip2.Reader
	if geoIPPath != "" {
		var err error
		geoIP, err = geoip2.Open(geoIPPath)
		if err != nil {
			log.Warn().Err(err).Str("path", geoIPPath).Msg("GeoIP database unavailable, country lookup disabled")
		}
	}

	return &Enricher{
		geoIP: geoIP,
	}
}

// Describe derives client details from the request's User-Agent and address
func (e *Enricher) Describe(userAgentString, clientIP string) Client {
	c := Client{IP: normalizeIP(clientIP)}

	if userAgentString != "" {
		ua := useragent.New(userAgentString)
		c.Browser, c.BrowserVersion = ua.Browser()
		c.OS = ua.OS()
		c.DeviceType = getDeviceType(ua)
	}

	if e.geoIP != nil && c.IP != "" {
		if ip := net.ParseIP(c.IP); ip != nil {
			record, err := e.geoIP.Country(ip)
			if err == nil {
				c.Country = record.Country.IsoCode
			}
		}
	}

	return c
}

// normalizeIP takes the first hop of X-Forwarded-For and drops a port
func normalizeIP(raw string) string {
	ip := strings.TrimSpace(strings.Split(raw, ",")[0])
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}

func getDeviceType(ua *useragent.UserAgent) string {
	if ua.Mobile() {
		return "mobile"
	}
	if ua.Bot() {
		return "bot"
	}
	return "desktop"
}

func (e *Enricher) Close() {
	if e.geoIP != nil {
		e.geoIP.Close()
	}
}
