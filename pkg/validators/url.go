package validators

import (
	"errors"
	"net/url"
)

var (
	ErrURLEmpty   = errors.New("no url provided")
	ErrURLInvalid = errors.New("url must be an absolute http or https address")
)

func URLValidator(raw string) error {
	if raw == "" {
		return ErrURLEmpty
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ErrURLInvalid
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrURLInvalid
	}

	if u.Host == "" {
		return ErrURLInvalid
	}

	return nil
}
