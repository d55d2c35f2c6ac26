package clanalytics

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

// DeviceInfo résultat de la classification d'une requête, champs vides si inconnus
type DeviceInfo struct {
	Platform   string `json:"platform"`
	DeviceType string `json:"deviceType"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// ClassifyRequest déduit plateforme, type d'appareil, navigateur et OS des en-têtes
func ClassifyRequest(r *http.Request) DeviceInfo {
	if r == nil {
		return DeviceInfo{}
	}

	uaString := r.UserAgent()
	info := DeviceInfo{Platform: detectPlatform(r.Header.Get("X-Platform"), uaString)}
	if strings.TrimSpace(uaString) == "" {
		return info
	}

	ua := useragent.New(uaString)
	info.DeviceType = detectDeviceType(ua, uaString)
	if name, _ := ua.Browser(); name != "" {
		info.Browser = name
	}
	if osInfo := ua.OSInfo(); osInfo.Name != "" {
		info.OS = osInfo.Name
	}
	return info
}

// l'en-tête explicite prime sur le user-agent
func detectPlatform(override, uaString string) string {
	if p := strings.ToLower(strings.TrimSpace(override)); p != "" {
		return p
	}

	ua := strings.ToLower(uaString)
	switch {
	case strings.Contains(ua, "android"):
		return PlatformAndroid
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return PlatformIOS
	default:
		return PlatformWeb
	}
}

func detectDeviceType(ua *useragent.UserAgent, raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case ua.Bot():
		return "bot"
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		return "tablet"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

// ClientIP premier élément de X-Forwarded-For, puis X-Real-IP, puis l'adresse de la connexion
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
