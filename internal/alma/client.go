// Package alma is the HTTP client for the Alma side of the relay.
//
// It covers the four remote operations: the generic NCIP POST used by the
// relay path, and the three REST API calls used by checkout orchestration
// (create loan, set due date, list a user's loans).
//
// Transport failure (connection error, request construction) is returned as
// an error. Application failure (a non-2xx status) is not: API calls return
// a [Result] carrying the status and raw body, and the caller decides the
// user-visible outcome. The one exception is the generic NCIP relay, where
// a failed upstream call is fatal for the inbound request and is therefore
// an error.
package alma

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/pkg/ncip"
)

const contentTypeXML = "application/xml"

// Alma creates a loan from a minimal fragment naming only the circulation
// desk and library; everything else comes from the URL parameters.
const loanBody = `<?xml version="1.0" encoding="UTF-8"?><item_loan><circ_desk>%s</circ_desk><library>%s</library></item_loan>`

// Config holds the endpoint URLs and constants for the Alma client. The URL
// templates are printf formats; see the config package for their parameters.
type Config struct {
	NCIPURL      string
	Desk         string
	Library      string
	LoanURL      string
	DueDateURL   string
	UserLoansURL string
	// Timeout bounds each call. Zero disables the timeout.
	Timeout time.Duration
}

// Client performs outbound calls against Alma. It is safe for concurrent
// use; it holds no per-request state.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// NewClient creates an Alma client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// Result is the outcome of a single Alma API call that completed at the
// HTTP level. The body of a failed call is kept for diagnostics.
type Result struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the call succeeded at the application level.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeXML)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Result{StatusCode: resp.StatusCode, Body: data}, nil
}

// SendNCIP posts a translated NCIP document to the Alma NCIP endpoint and
// returns the parsed reply. Any failure here is fatal for the inbound
// request; the generic relay path has no synthesized fallback.
func (c *Client) SendNCIP(ctx context.Context, doc *ncip.Document) (*ncip.Document, error) {
	body, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodPost, c.cfg.NCIPURL, body)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("alma NCIP endpoint returned status %d", res.StatusCode)
	}
	reply, err := ncip.Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing alma NCIP reply: %w", err)
	}
	return reply, nil
}

// CreateLoan checks an item out to a user. On success the body is the
// created loan fragment.
func (c *Client) CreateLoan(ctx context.Context, userID, itemID string) (*Result, error) {
	url := fmt.Sprintf(c.cfg.LoanURL, userID, itemID)
	body := fmt.Sprintf(loanBody, c.cfg.Desk, c.cfg.Library)
	return c.do(ctx, http.MethodPost, url, []byte(body))
}

// UpdateDueDate overwrites the loan's due date and PUTs the full loan
// fragment back to Alma. The body is always UTF-8 encoded.
func (c *Client) UpdateDueDate(ctx context.Context, loan *Loan, due string) (*Result, error) {
	url := fmt.Sprintf(c.cfg.DueDateURL, loan.UserID(), loan.LoanID())
	loan.SetDueDate(due)
	body, err := loan.Bytes()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, url, body)
}

// UserLoans fetches a user's active loans. A non-2xx status is an error
// here because the caller cannot proceed without the list.
func (c *Client) UserLoans(ctx context.Context, userID string) ([]*Loan, error) {
	url := fmt.Sprintf(c.cfg.UserLoansURL, userID)
	res, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("alma loan list returned status %d", res.StatusCode)
	}
	return ParseLoanList(res.Body)
}
