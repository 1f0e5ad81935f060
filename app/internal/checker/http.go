package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"

	"infrastatus/app/internal/models"
)

const (
	userAgent    = "infrastatus/1.0"
	maxRedirects = 3
	maxBodyBytes = 1 << 20
)

var errTooManyRedirects = errors.New("stopped after 3 redirects")

var (
	verifyingClient = newHTTPClient(false)
	insecureClient  = newHTTPClient(true)
)

func newHTTPClient(skipVerify bool) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipVerify}
	tr.DisableKeepAlives = true
	return &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}

// CheckDomain issues one GET against the domain and classifies the result.
// The returned record is always usable; the error only describes why the
// probe failed.
func CheckDomain(ctx context.Context, d models.Domain) (models.DomainCheck, error) {
	rec := models.DomainCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindDomain, Target: d.Name},
		URL:         d.URL,
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		rec.Status, rec.Error = ClassifyHTTP(0, d.Expected(), err)
		rec.CheckedAt = time.Now().UTC()
		return rec, &ProbeError{Target: d.Name, Kind: ErrProbeProtocol, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	client := verifyingClient
	if !d.ShouldVerifyTLS() {
		client = insecureClient
	}

	t0 := time.Now()
	resp, err := client.Do(req)
	if err == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
	}
	ms := int(time.Since(t0).Milliseconds())
	rec.ResponseMS = &ms
	rec.CheckedAt = time.Now().UTC()

	if err != nil {
		rec.Status, rec.Error = ClassifyHTTP(0, d.Expected(), err)
		return rec, newProbeError(d.Name, err)
	}
	rec.StatusCode = resp.StatusCode
	rec.Status, rec.Error = ClassifyHTTP(resp.StatusCode, d.Expected(), nil)
	return rec, nil
}
