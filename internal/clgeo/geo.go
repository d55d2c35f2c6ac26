package clgeo

import (
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
	"github.com/rs/zerolog/log"
)

// Resolver pays d'une IP depuis une base MaxMind locale
type Resolver struct {
	reader *geoip2.Reader
}

func Open(path string) (*Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("GeoIP database loaded")
	return &Resolver{reader: reader}, nil
}

// Country code ISO, vide pour une IP privée, invalide ou absente de la base
func (r *Resolver) Country(ip string) string {
	addr, ok := lookupAddr(ip)
	if !ok {
		return ""
	}

	record, err := r.reader.Country(addr)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("geoip lookup failed")
		return ""
	}
	return record.Country.ISOCode
}

func (r *Resolver) Close() error {
	return r.reader.Close()
}

func lookupAddr(ip string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return netip.Addr{}, false
	}
	return addr, true
}
