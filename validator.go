package totpgate

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxValidatorResponse bounds how much of the validation-service response is
// read. Well-formed responses are a few hundred bytes.
const maxValidatorResponse = 1 << 20

// ValidatorClient issues verification requests to a LinOTP-style validation
// service: GET {base}/validate/check?pass={code}&user={user}, expecting a
// JSON body shaped {"result":{"status":...,"value":...}}.
//
// Certificates are verified by default. ValidatorConfig.InsecureSkipTLSVerify
// exists only for controlled test environments.
type ValidatorClient struct {
	http *http.Client
}

// NewValidatorClient describes the newvalidatorclient operation and its observable behavior.
//
// NewValidatorClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewValidatorClient(cfg ValidatorConfig) *ValidatorClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultConfig().Validator.Timeout
	}

	client := &http.Client{Timeout: timeout}
	if cfg.InsecureSkipTLSVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}
	return &ValidatorClient{http: client}
}

type checkResponse struct {
	Result *struct {
		Status *bool            `json:"status"`
		Value  *json.RawMessage `json:"value"`
	} `json:"result"`
}

// Check performs one validation round trip. A transport-level failure, a
// timeout, or an empty body yields ErrValidatorUnreachable; a body that is
// not the expected structure yields ErrValidatorProtocol. Neither is ever
// folded into "wrong code": the caller decides pass/fail by comparing the
// submitted code against the asserted value.
func (c *ValidatorClient) Check(ctx context.Context, baseURL, code, userID string) (ValidationOutcome, error) {
	query := url.Values{}
	query.Set("pass", code)
	query.Set("user", userID)
	requestURL := strings.TrimRight(baseURL, "/") + "/validate/check?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return ValidationOutcome{}, fmt.Errorf("%w: %v", ErrValidatorUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ValidationOutcome{}, fmt.Errorf("%w: %v", ErrValidatorUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxValidatorResponse))
	if err != nil {
		return ValidationOutcome{}, fmt.Errorf("%w: %v", ErrValidatorUnreachable, err)
	}
	if len(body) == 0 {
		return ValidationOutcome{}, fmt.Errorf("%w: empty response body", ErrValidatorUnreachable)
	}

	var parsed checkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ValidationOutcome{}, fmt.Errorf("%w: %v", ErrValidatorProtocol, err)
	}
	if parsed.Result == nil || parsed.Result.Status == nil || parsed.Result.Value == nil {
		return ValidationOutcome{}, fmt.Errorf("%w: missing result.status or result.value", ErrValidatorProtocol)
	}

	asserted, err := decodeAssertedValue(*parsed.Result.Value)
	if err != nil {
		return ValidationOutcome{}, err
	}

	return ValidationOutcome{
		Status:        *parsed.Result.Status,
		AssertedValue: asserted,
	}, nil
}

// decodeAssertedValue accepts the two shapes deployed validators emit for
// result.value: a JSON string or a bare number. Codes are numeric-as-text,
// so numbers are kept in their exact source form.
func decodeAssertedValue(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String(), nil
	}

	return "", fmt.Errorf("%w: result.value has unsupported type", ErrValidatorProtocol)
}
