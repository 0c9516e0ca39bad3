// Package compliance talks to the tax-registry collaborator: tax ID
// verification, return-filing history, GSTR-2B reconciliation, and
// e-invoice IRN lookups.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicelens/invoicelens/internal/common"
)

// ErrRestricted marks a 403 from the registry: the credential is fine
// but the plan does not cover the endpoint. Callers degrade this to a
// softer penalty than a hard verification failure.
var ErrRestricted = errors.New("api access restricted")

var taxIDShape = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)

// Client is the HTTP client for the registry. All operations acquire a
// fresh bearer credential; the registry's tokens are short-lived and no
// caching contract is documented.
type Client struct {
	cfg    common.ComplianceConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg common.ComplianceConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// ValidTaxIDFormat reports whether s has the 15-character registry shape.
func ValidTaxIDFormat(s string) bool {
	return taxIDShape.MatchString(strings.ToUpper(s))
}

// authenticate exchanges the API key pair for a bearer token.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/authenticate", nil)
	if err != nil {
		return "", common.WrapError(err, "building authenticate request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("x-api-secret", c.cfg.APISecret)
	req.Header.Set("x-api-version", c.cfg.APIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", common.AuthError("authenticate request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", common.AuthError("authenticate rejected", errors.New(resp.Status))
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		return "", common.AuthError("authenticate response missing access_token", err)
	}
	return "Bearer " + body.AccessToken, nil
}

// doJSON issues one authenticated request and returns the raw body and
// status. A 403 maps to ErrRestricted, a 401 to AUTH_ERROR.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, 0, err
	}

	// Reuse the pipeline's request ID when one rode in on the context.
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	var reqBody io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, common.WrapError(err, "encoding request body")
		}
		reqBody = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, 0, common.WrapError(err, "building request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", token)
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("x-api-version", c.cfg.APIVersion)
	if payload != nil {
		req.Header.Set("content-type", "application/json")
	}

	c.logger.Debug("compliance.http.request", "req_id", reqID, "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, common.TimeoutError("registry request timed out", err)
		}
		return nil, 0, common.APIError("registry request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Debug("compliance.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return raw, resp.StatusCode, ErrRestricted
	case http.StatusUnauthorized:
		return raw, resp.StatusCode, common.AuthError("registry rejected credentials", nil)
	}
	return raw, resp.StatusCode, nil
}

// TaxIDDetails is the registry's view of a tax ID.
type TaxIDDetails struct {
	Valid            bool
	Name             string
	Status           string
	RegistrationDate string
}

type taxpayerPayload struct {
	Status string `json:"status"`
	Data   struct {
		Status           string `json:"status"`
		TaxpayerStatus   string `json:"taxpayerStatus"`
		LegalName        string `json:"legalName"`
		TradeName        string `json:"tradeName"`
		BusinessName     string `json:"businessName"`
		RegistrationDate string `json:"registrationDate"`
	} `json:"data"`
}

// VerifyTaxID confirms a tax ID against the registry. A malformed ID
// fails fast with INVALID_FORMAT; a restricted plan returns
// ErrRestricted so callers can fall back to format-only confidence.
func (c *Client) VerifyTaxID(ctx context.Context, taxID string) (TaxIDDetails, error) {
	if !ValidTaxIDFormat(taxID) {
		return TaxIDDetails{}, common.InvalidFormatError("tax ID is not 15-character registry format")
	}

	raw, status, err := c.doJSON(ctx, http.MethodPost, "/gst/compliance/taxpayer/gstin", map[string]string{"gstin": taxID})
	if err != nil {
		return TaxIDDetails{}, err
	}
	if status != http.StatusOK {
		return TaxIDDetails{}, common.APIError("taxpayer lookup failed", errors.New(http.StatusText(status)))
	}

	var body taxpayerPayload
	if err := json.Unmarshal(raw, &body); err != nil {
		return TaxIDDetails{}, common.APIError("malformed taxpayer response", err)
	}
	if body.Status != "success" {
		return TaxIDDetails{}, common.NotFoundError("tax ID not found in registry")
	}

	st := body.Data.Status
	if st == "" {
		st = body.Data.TaxpayerStatus
	}
	name := firstNonEmpty(body.Data.LegalName, body.Data.TradeName, body.Data.BusinessName)

	details := TaxIDDetails{
		Valid:            strings.EqualFold(st, "ACTIVE"),
		Name:             strings.TrimSpace(name),
		Status:           st,
		RegistrationDate: body.Data.RegistrationDate,
	}
	c.logger.Info("compliance.taxid.verified", "tax_id", taxID, "status", details.Status, "valid", details.Valid)
	return details, nil
}

// VendorName resolves a registered name for a tax ID. It satisfies the
// extractor's lookup collaborator.
func (c *Client) VendorName(ctx context.Context, taxID string) (string, error) {
	if !ValidTaxIDFormat(taxID) {
		return "", common.InvalidFormatError("tax ID is not 15-character registry format")
	}

	raw, status, err := c.doJSON(ctx, http.MethodPost, "/gst/compliance/public/gstin/search", map[string]string{"gstin": taxID})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", common.APIError("gstin search failed", errors.New(http.StatusText(status)))
	}

	var body struct {
		Data struct {
			Data struct {
				LegalName string `json:"lgnm"`
				TradeName string `json:"tradeNam"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", common.APIError("malformed gstin search response", err)
	}
	name := strings.TrimSpace(firstNonEmpty(body.Data.Data.LegalName, body.Data.Data.TradeName))
	if name == "" {
		return "", common.NotFoundError("no registered name for tax ID")
	}
	return name, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
