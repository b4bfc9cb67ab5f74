package telephony

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// MaxWebhookBody caps the form body read from a provider webhook.
const MaxWebhookBody int64 = 1 << 20

var (
	ErrBodyTooLarge  = errors.New("telephony: webhook body too large")
	ErrMalformedForm = errors.New("telephony: malformed form body")
)

// ParseStatusForm reads an application/x-www-form-urlencoded webhook body.
// Twilio posts status callbacks as forms; other content types yield no
// parameters, which then fail signature or required-field checks.
func ParseStatusForm(r *http.Request, limit int64) (url.Values, error) {
	if limit <= 0 {
		limit = MaxWebhookBody
	}
	if r.Body == nil {
		return url.Values{}, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("telephony: read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return url.Values{}, nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
	}
	return values, nil
}

// Fields flattens form values to the first value per key.
func Fields(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}
