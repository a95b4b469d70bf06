package http

import (
	"sort"

	"github.com/alessio/shellescape"
)

// Curl renders req as a shell-safe curl command line for reproducing a
// failed call by hand. Header order is sorted so output is stable.
func (r *Request) Curl() string {
	r = r.Clone()
	r.ApplyAuth()
	args := []string{"curl", "-sS", "-X", r.Method}

	names := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		args = append(args, "-H", k+": "+r.Headers[k])
	}

	if r.Auth != nil && r.Auth.Validate() == nil {
		switch r.Auth.Type {
		case AuthDigest:
			args = append(args, "--digest", "-u", r.Auth.Params[0]+":"+r.Auth.Params[1])
		case AuthAWS:
			args = append(args, "--aws-sigv4", "aws:amz:"+r.Auth.Params[2]+":"+r.Auth.Params[3],
				"-u", r.Auth.Params[0]+":"+r.Auth.Params[1])
		case AuthOAuth2Grant:
			args = append(args, "-H", "Authorization: Bearer $TOKEN")
		}
	}

	for _, f := range r.Multipart {
		if f.Type == MultipartFieldFile {
			args = append(args, "-F", f.Name+"=@"+f.Path)
		} else {
			args = append(args, "-F", f.Name+"="+f.Value)
		}
	}
	if len(r.Multipart) == 0 && r.Body != "" {
		args = append(args, "--data-raw", r.Body)
	}

	args = append(args, r.URL)
	return shellescape.QuoteCommand(args)
}
