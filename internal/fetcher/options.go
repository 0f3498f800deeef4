package fetcher

import "strings"

// Options configures one Fetch call, with clamped defaults per spec.md §4.1.
type Options struct {
	Method              string
	MaxRedirects        int
	MaxBytes            int64
	TotalTimeoutMs       int
	HopTimeoutMs         int
	AllowedPorts        map[int]bool
	AllowedContentTypes map[string]bool
	Headers             map[string]string
}

var sensitiveHeaders = map[string]bool{
	"cookie":               true,
	"set-cookie":           true,
	"authorization":        true,
	"proxy-authorization":  true,
}

func defaultPorts() map[int]bool {
	return map[int]bool{80: true, 443: true, 8080: true}
}

func defaultContentTypes() map[string]bool {
	return map[string]bool{"text/html": true, "text/plain": true, "application/json": true}
}

func (o Options) normalized() Options {
	out := o
	if out.Method == "" {
		out.Method = "GET"
	}
	out.Method = strings.ToUpper(out.Method)

	switch {
	case out.MaxRedirects == 0:
		out.MaxRedirects = 4
	case out.MaxRedirects < 0:
		out.MaxRedirects = 0
	case out.MaxRedirects > 6:
		out.MaxRedirects = 6
	}

	if out.MaxBytes == 0 {
		out.MaxBytes = 1_000_000
	} else if out.MaxBytes < 1024 {
		out.MaxBytes = 1024
	}

	if out.TotalTimeoutMs == 0 {
		out.TotalTimeoutMs = 7000
	} else if out.TotalTimeoutMs < 1000 {
		out.TotalTimeoutMs = 1000
	}

	if out.HopTimeoutMs == 0 {
		out.HopTimeoutMs = 4000
	} else if out.HopTimeoutMs < 500 {
		out.HopTimeoutMs = 500
	}

	if out.AllowedPorts == nil {
		out.AllowedPorts = defaultPorts()
	}
	if out.AllowedContentTypes == nil {
		out.AllowedContentTypes = defaultContentTypes()
	}

	sanitized := make(map[string]string, len(out.Headers))
	for k, v := range out.Headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			continue
		}
		sanitized[k] = v
	}
	out.Headers = sanitized

	return out
}
