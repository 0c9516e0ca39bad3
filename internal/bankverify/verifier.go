// Package bankverify performs penny-less bank account verification
// against the registry's bank rails.
package bankverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/common"
)

// ifscShape: 4-letter bank code, a zero, 6 alphanumerics.
var ifscShape = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

var bankNames = map[string]string{
	"ICIC": "ICICI Bank",
	"SBIN": "State Bank of India",
	"HDFC": "HDFC Bank",
	"AXIS": "Axis Bank",
	"KKBK": "Kotak Mahindra Bank",
	"INDB": "Indian Bank",
	"PUNB": "Punjab National Bank",
	"UBIN": "Union Bank of India",
	"CNRB": "Canara Bank",
	"BARB": "Bank of Baroda",
}

// BankName resolves a display name from the IFSC bank code prefix.
func BankName(ifsc string) string {
	if len(ifsc) < 4 {
		return ""
	}
	code := strings.ToUpper(ifsc[:4])
	if name, ok := bankNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Bank (%s)", code)
}

// Result is the outcome of one account verification.
type Result struct {
	Status        string `json:"status"`
	AccountExists bool   `json:"account_exists"`
	NameAtBank    string `json:"name_at_bank,omitempty"`
	// NameMatch is set only when the caller supplied an expected holder
	// name.
	NameMatch      *bool  `json:"name_match,omitempty"`
	BankName       string `json:"bank_name,omitempty"`
	VerificationID string `json:"verification_id,omitempty"`
	VerifiedAt     string `json:"verified_at,omitempty"`
	Message        string `json:"message,omitempty"`
}

// IFSCDetails is the branch record behind an IFSC code.
type IFSCDetails struct {
	Bank    string `json:"bank"`
	Branch  string `json:"branch"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	NEFT    bool   `json:"neft"`
	RTGS    bool   `json:"rtgs"`
	IMPS    bool   `json:"imps"`
	UPI     bool   `json:"upi"`
}

// Verifier calls the bank verification endpoints.
type Verifier struct {
	cfg    common.ComplianceConfig
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewVerifier(cfg common.ComplianceConfig, httpClient *http.Client, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Verifier{cfg: cfg, http: httpClient, logger: logger, now: time.Now}
}

func (v *Verifier) authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.BaseURL+"/authenticate", nil)
	if err != nil {
		return "", common.WrapError(err, "building authenticate request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", v.cfg.APIKey)
	req.Header.Set("x-api-secret", v.cfg.APISecret)
	req.Header.Set("x-api-version", v.cfg.APIVersion)

	resp, err := v.http.Do(req)
	if err != nil {
		return "", common.AuthError("authenticate request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", common.AuthError("authenticate rejected", errors.New(resp.Status))
	}
	var body struct {
		AccessToken string `json:"access_token"`
		Data        struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", common.AuthError("malformed authenticate response", err)
	}
	token := body.AccessToken
	if token == "" {
		token = body.Data.AccessToken
	}
	if token == "" {
		return "", common.AuthError("authenticate response missing access_token", nil)
	}
	return token, nil
}

// VerifyAccount runs a penny-less existence check for an account and
// routing code pair. expectedName is optional; when set the result
// carries an exact-match flag against the name at the bank.
func (v *Verifier) VerifyAccount(ctx context.Context, accountNumber, ifsc, expectedName string) (Result, error) {
	ifsc = strings.ToUpper(strings.TrimSpace(ifsc))
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" || !ifscShape.MatchString(ifsc) {
		return Result{Status: constants.BankInvalidDetails}, common.InvalidFormatError("account number or IFSC malformed")
	}

	token, err := v.authenticate(ctx)
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/bank/%s/accounts/%s/penniless-verify", v.cfg.BaseURL, ifsc, accountNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, common.WrapError(err, "building verification request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", token)
	req.Header.Set("x-api-key", v.cfg.APIKey)
	req.Header.Set("x-accept-cache", "true")
	req.Header.Set("x-api-version", v.cfg.APIVersion)

	v.logger.Info("bankverify.request", "ifsc", ifsc)

	resp, err := v.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, common.TimeoutError("bank verification timed out", err)
		}
		return Result{}, common.APIError("bank verification request failed", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return Result{Status: constants.BankInvalidDetails}, nil
	case http.StatusNotFound:
		return Result{Status: constants.BankAccountNotFound}, nil
	case http.StatusUnauthorized:
		return Result{}, common.AuthError("bank verification rejected credentials", nil)
	default:
		return Result{}, common.APIError("bank verification failed", fmt.Errorf("status %d", resp.StatusCode))
	}

	var body struct {
		Code          int    `json:"code"`
		TransactionID string `json:"transaction_id"`
		Data          struct {
			AccountExists bool   `json:"account_exists"`
			NameAtBank    string `json:"name_at_bank"`
			Message       string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{}, common.APIError("malformed verification response", err)
	}
	if body.Code != 200 {
		return Result{}, common.APIError("bank verification failed", fmt.Errorf("registry code %d", body.Code))
	}

	res := Result{
		AccountExists:  body.Data.AccountExists,
		NameAtBank:     body.Data.NameAtBank,
		BankName:       BankName(ifsc),
		VerificationID: body.TransactionID,
		VerifiedAt:     v.now().UTC().Format(time.RFC3339),
		Message:        body.Data.Message,
	}
	if body.Data.AccountExists {
		res.Status = constants.BankVerified
	} else {
		res.Status = constants.BankAccountNotFound
	}
	if expectedName != "" && res.NameAtBank != "" {
		match := strings.EqualFold(strings.TrimSpace(expectedName), strings.TrimSpace(res.NameAtBank))
		res.NameMatch = &match
	}
	return res, nil
}

// LookupIFSC fetches the branch record behind an IFSC code.
func (v *Verifier) LookupIFSC(ctx context.Context, ifsc string) (IFSCDetails, error) {
	ifsc = strings.ToUpper(strings.TrimSpace(ifsc))
	if !ifscShape.MatchString(ifsc) {
		return IFSCDetails{}, common.InvalidFormatError("IFSC malformed")
	}

	token, err := v.authenticate(ctx)
	if err != nil {
		return IFSCDetails{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.BaseURL+"/ifsc/"+ifsc, nil)
	if err != nil {
		return IFSCDetails{}, common.WrapError(err, "building IFSC request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", token)
	req.Header.Set("x-api-key", v.cfg.APIKey)
	req.Header.Set("x-api-version", v.cfg.APIVersion)

	resp, err := v.http.Do(req)
	if err != nil {
		return IFSCDetails{}, common.APIError("IFSC lookup failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return IFSCDetails{}, common.NotFoundError("IFSC not found")
	}

	var body struct {
		Code int         `json:"code"`
		Data IFSCDetails `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return IFSCDetails{}, common.APIError("malformed IFSC response", err)
	}
	if body.Code != 200 {
		return IFSCDetails{}, common.NotFoundError("IFSC not found")
	}
	return body.Data, nil
}
