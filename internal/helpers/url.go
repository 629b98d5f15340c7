package helpers

import (
	"errors"
	"net"
	"net/url"
	"path"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"gclid":   {},
	"dclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"igshid":  {},
}

func isTrackingParam(k string) bool {
	k = strings.ToLower(k)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := trackingQueryParams[k]
	return ok
}

// CanonicalURL normalises an absolute URL so that links to the same article
// compare equal: lower-case host, no default port, cleaned path, no fragment,
// no tracking parameters and sorted query keys.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("url missing host")
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	host, port := strings.ToLower(u.Hostname()), u.Port()
	if port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host = net.JoinHostPort(host, port)
	}
	u.Host = host

	u.Path = path.Clean("/" + u.Path)
	u.RawPath = ""
	u.Fragment, u.RawFragment = "", ""

	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
