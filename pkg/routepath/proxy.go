package routepath

import (
	"net/url"
	"strings"
)

// ProxyParam is the query parameter that carries a reverse-proxy prefix.
const ProxyParam = "proxy"

// ProxyPrefix returns the decoded proxy prefix carried by search, without a
// trailing slash. search may start with "?". Values that are still
// percent-encoded after query parsing are decoded once more.
func ProxyPrefix(search string) string {
	values, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil {
		return ""
	}
	proxy := values.Get(ProxyParam)
	if strings.Contains(proxy, "%") {
		if decoded, err := url.PathUnescape(proxy); err == nil {
			proxy = decoded
		}
	}
	proxy = strings.TrimRight(proxy, "/")
	if proxy != "" && !strings.HasPrefix(proxy, "/") {
		proxy = "/" + proxy
	}
	return proxy
}

// StripProxy removes the proxy prefix named by search from pathname.
// Prefix comparison ignores case. pathname is returned unchanged when it
// does not start with the prefix.
func StripProxy(pathname, search string) string {
	prefix := ProxyPrefix(search)
	if prefix == "" {
		return pathname
	}
	if len(pathname) < len(prefix) || !strings.EqualFold(pathname[:len(prefix)], prefix) {
		return pathname
	}
	rest := pathname[len(prefix):]
	if rest == "" {
		return "/"
	}
	if rest[0] != '/' {
		// "/proxyextra" does not start with the "/proxy" segment.
		return pathname
	}
	return rest
}

// Join prepends prefix to path, normalizing the slash between them.
func Join(prefix, path string) string {
	prefix = strings.TrimRight(prefix, "/")
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	if prefix == "" {
		return path
	}
	if path == "/" {
		return prefix + "/"
	}
	return prefix + path
}

// WithProxy builds a URL for path that survives a reverse proxy: the proxy
// prefix from currentSearch is prepended and the proxy parameter is
// carried over into the new query string. Extra query values in params are
// added as well.
func WithProxy(path, currentSearch string, params url.Values) string {
	prefix := ProxyPrefix(currentSearch)

	pathname, query := SplitPathAndQuery(path)
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	if prefix != "" {
		values.Set(ProxyParam, prefix)
	}

	out := Join(prefix, pathname)
	if encoded := values.Encode(); encoded != "" {
		out += "?" + encoded
	}
	return out
}
