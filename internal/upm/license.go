package upm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// License is the license state of a single plugin.
type License struct {
	PluginKey                string `json:"pluginKey"`
	Valid                    bool   `json:"valid"`
	Error                    string `json:"error,omitempty"`
	Evaluation               bool   `json:"evaluation"`
	NearlyExpired            bool   `json:"nearlyExpired"`
	MaximumNumberOfUsers     *int   `json:"maximumNumberOfUsers,omitempty"`
	LicenseType              string `json:"licenseType"`
	ExpiryDate               *int64 `json:"expiryDate,omitempty"`
	RawLicense               string `json:"rawLicense,omitempty"`
	Active                   *bool  `json:"active,omitempty"`
	SupportEntitlementNumber string `json:"supportEntitlementNumber,omitempty"`
	AutoRenewal              *bool  `json:"autoRenewal,omitempty"`
}

var licenseRequired = []string{"valid"}

func DecodeLicense(raw []byte) (*License, error) {
	return decode[License]("license", raw, licenseRequired)
}

func licensePath(key string) string {
	return PluginPath(key) + "/license"
}

func (c *Client) License(ctx context.Context, key string) (*License, error) {
	path := licensePath(key)
	resp, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodGet, path, "license of "+key); err != nil {
		return nil, err
	}
	return DecodeLicense(resp.Body)
}

// UpdateLicense installs rawLicense for the plugin and returns the resulting
// license state.
func (c *Client) UpdateLicense(ctx context.Context, key, rawLicense string) (*License, error) {
	path := licensePath(key)
	body := map[string]string{"rawLicense": rawLicense}
	resp, err := c.send(ctx, http.MethodPut, path, nil, LicenseContentType, body)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodPut, path, "license of "+key); err != nil {
		return nil, err
	}
	return DecodeLicense(resp.Body)
}

// DeleteLicense removes the plugin license. The server answers with the
// license as it was before the removal.
func (c *Client) DeleteLicense(ctx context.Context, key string) (*License, error) {
	path := licensePath(key)
	resp, err := c.send(ctx, http.MethodDelete, path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodDelete, path, "license of "+key); err != nil {
		return nil, err
	}
	return DecodeLicense(resp.Body)
}

// Timebomb licenses are short lived developer licenses accepted by every
// plugin using the licensing API.
const (
	TimebombThreeHours   = "threehours"
	TimebombSixtySeconds = "sixtyseconds"
	TimebombTenSeconds   = "tenseconds"
)

var timebombLicenses = map[string]string{
	TimebombThreeHours:
		"AAABCA0ODAoPeNpdj01PwkAURffzKyZxZ1IyUzARkllQ24gRaQMtGnaP8VEmtjPNfFT59yJVFyzfubkn796Ux0Bz6SmbUM5nbDzj97RISxozHpMUnbSq8" +
		"8poUaLztFEStUN6MJZ2TaiVpu/YY2M6tI6sQrtHmx8qd74EZ+TBIvyUU/AoYs7jiE0jzknWQxMuifA2IBlUbnQ7AulVjwN9AaU9atASs69O2dNFU4wXJL" +
		"c1aOUGw9w34JwCTTZoe7RPqUgep2X0Vm0n0fNut4gSxl/Jcnj9nFb6Q5tP/Ueu3L+0PHW4ghZFmm2zZV5k6/95CbR7Y9bYGo/zGrV3Ir4jRbDyCA6vt34" +
		"DO8p3SDAsAhQnJjLD5k9Fr3uaIzkXKf83o5vDdQIUe4XequNCC3D+9ht9ZYhNZFKmnhc=X02dh",
	TimebombSixtySeconds:
		"AAABEA0ODAoPeNp9UE1Pg0AUvO+v2MSbCc0uQZOS7KEIUWMtpNJqGi9bfKUb4S3ZD7T/XgrqwYPv9mbezGTeRXn0NK8cZRHlPGZRHEW0SEsaMh6SFGxlV" +
		"OeURlGCdbRRFaAFetCGdo2vFdI36KHRHRhLVr7dg8kPGztsgjNyY0Cexal0IELOw4DNA85J1svGj4xwxgOZrOzsciYrp3qY0Eep0AFKrCD77JQ5jTapN6" +
		"PyNb5mw5Dc1BKVndwWrpHWKonkCUwP5j4Vye28DF422yh42O3ugoTxZ7KcagzsBt9Rf+AP8k/O90V56mAl24HPttkyL7L1b+1Etnut19BqB4sa0FkRXpH" +
		"Cm+ooLfz9wRfgrX9WMCwCFAkWHvhJCdutS3LcZ46iYgICDPQqAhQL76vdT4AYTQXBwl/wbw/MtQrP4w==X02dt",
	TimebombTenSeconds:
		"AAABEA0ODAoPeNp9UE1Pg0AUvO+v2MSbCc0uoYeScChC1FhLU6Gaxsvr+ko3wi7ZD7T/XoTqwYPv9mbezGTeVXnytBCOsohyHrN5HHG6yUoaMh6SDK0ws" +
		"nNSq6RE62gjBSqL9KgN7RpfS0XfsMdGd2gsWfv2gKY4VnbYEs7IjUH4FmfgMAk5DwO2CDgneQ+NH5nEGY9ksrKz6xkIJ3uc0EeQyqECJTD/7KQ5jzaZN6" +
		"PyNeZsGFKYGpS0k9vSNWCtBEWe0PRo7rMkvV2UwUu1i4KH/f4uSBl/JqupxsBW6l3pD/WD/JNzuSjPHa6hHfh8l6+KTb79rZ1Ce9B6i612uKxROZuEc7L" +
		"xRpzA4t8ffAHYfn9KMCwCFEErfsC777XOAsdjoKVRM24pJL3+AhRbORJTyFn7+5BUotohYeGfCqYgkA==X02dt",
}

// TimebombNames lists the available timebomb licenses.
func TimebombNames() []string {
	return []string{TimebombThreeHours, TimebombSixtySeconds, TimebombTenSeconds}
}

// TimebombLicense returns the raw license registered under name (case
// insensitive).
func TimebombLicense(name string) (string, error) {
	lic, ok := timebombLicenses[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown timebomb license %q, valid: %s", name, strings.Join(TimebombNames(), ", "))
	}
	return lic, nil
}
