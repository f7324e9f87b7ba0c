package classify

import (
	"errors"
	"strings"
)

var errInvalidNetloc = errors.New("invalid IPv6 netloc")

// schemes whose last path segment may carry ";params".
var paramSchemes = map[string]bool{
	"": true, "ftp": true, "hdl": true, "prospero": true, "http": true,
	"imap": true, "https": true, "shttp": true, "rtsp": true, "rtsps": true,
	"rtspu": true, "sip": true, "sips": true, "mms": true, "sftp": true, "tel": true,
}

// splitNetlocPath extracts the network location and path of a URL the same
// way the training pipeline did. A normalized URL has no "//" after its
// scheme, so the network location is usually empty and the whole string
// lands in the path. net/url is not used because it rejects or reshapes
// inputs (e.g. "host:8080/x") that the trained features depend on.
func splitNetlocPath(raw string) (netloc, path string, err error) {
	u := strings.TrimLeftFunc(raw, func(r rune) bool { return r <= ' ' })
	u = strings.NewReplacer("\t", "", "\r", "", "\n", "").Replace(u)

	scheme := ""
	if i := strings.IndexByte(u, ':'); i > 0 && isASCIILetter(u[0]) {
		candidate := u[:i]
		if strings.IndexFunc(candidate, func(r rune) bool { return !isSchemeChar(r) }) < 0 {
			scheme = strings.ToLower(candidate)
			u = u[i+1:]
		}
	}

	if strings.HasPrefix(u, "//") {
		end := len(u)
		if j := strings.IndexAny(u[2:], "/?#"); j >= 0 {
			end = j + 2
		}
		netloc, u = u[2:end], u[end:]
		if strings.Contains(netloc, "[") != strings.Contains(netloc, "]") {
			return "", "", errInvalidNetloc
		}
	}

	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}

	if paramSchemes[scheme] && strings.Contains(u, ";") {
		u = stripParams(u)
	}
	return netloc, u, nil
}

func stripParams(u string) string {
	from := 0
	if k := strings.LastIndexByte(u, '/'); k >= 0 {
		from = k
	}
	if i := strings.IndexByte(u[from:], ';'); i >= 0 {
		return u[:from+i]
	}
	return u
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSchemeChar(r rune) bool {
	return r < 0x80 && (isASCIILetter(byte(r)) || (r >= '0' && r <= '9') || r == '+' || r == '-' || r == '.')
}
