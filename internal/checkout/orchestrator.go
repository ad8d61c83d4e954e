// Package checkout converts InnReach checkout and renewal notifications
// into live Alma transactions.
//
// ItemCheckedOut and ItemRenewed describe circulation events that already
// happened on the InnReach side. Alma cannot accept a "this already
// happened" notification, so the orchestrator replays the event through the
// Alma loan APIs and synthesizes a canned NCIP response for InnReach.
//
// # ItemCheckedOut
//
//  1. Create the loan (user id + item barcode from the notification).
//  2. If the notification carries a due date and the loan was created,
//     set the due date on the new loan.
//
// The response reflects only whether the loan was created. A failed
// due-date call is logged but does not downgrade a successful checkout;
// the item is already in the patron's hands either way.
//
// # ItemRenewed
//
//  1. List the user's active loans and find the one matching the barcode.
//  2. Set the due date on that loan.
//
// Renewal exists only to move the due date, so failure of the due-date call
// is terminal and yields a problem response.
//
// All calls within one orchestration are strictly sequential: the second
// call's URL is derived from the first call's result.
package checkout

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/alma"
	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/pkg/ncip"
)

// LoanService is the slice of the Alma client the orchestrator needs.
type LoanService interface {
	CreateLoan(ctx context.Context, userID, itemID string) (*alma.Result, error)
	UpdateDueDate(ctx context.Context, loan *alma.Loan, due string) (*alma.Result, error)
	UserLoans(ctx context.Context, userID string) ([]*alma.Loan, error)
}

// Orchestrator turns notification-style NCIP requests into Alma
// transactions. It holds no state across requests.
type Orchestrator struct {
	loans    LoanService
	siteCode string
	logger   *slog.Logger
}

// New creates an Orchestrator. siteCode is the InnReach site code stamped
// into the canned responses.
func New(loans LoanService, siteCode string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{loans: loans, siteCode: siteCode, logger: logger}
}

// ItemCheckedOut replays an ItemCheckedOut notification as an Alma loan
// creation, optionally followed by a due-date update.
func (o *Orchestrator) ItemCheckedOut(ctx context.Context, doc *ncip.Document) *ncip.Document {
	userID := doc.Text("/NCIPMessage/ItemCheckedOut/UniqueUserId/UserIdentifierValue")
	itemID := visibleItemBarcode(doc, "ItemCheckedOut")
	if itemID == "" {
		itemID = doc.Text("/NCIPMessage/ItemCheckedOut/UniqueItemId/ItemIdentifierValue")
	}

	res, err := o.loans.CreateLoan(ctx, userID, itemID)
	if err != nil {
		o.logger.Error("loan creation failed", "user_id", userID, "item_id", itemID, "error", err)
		return ncip.BuildResponse(o.siteCode, "ItemCheckedOut", ncip.OutcomeProblem)
	}
	if !res.OK() {
		o.logger.Warn("loan creation rejected",
			"user_id", userID, "item_id", itemID,
			"status", res.StatusCode, "body", string(res.Body))
		return ncip.BuildResponse(o.siteCode, "ItemCheckedOut", ncip.OutcomeProblem)
	}

	response := ncip.BuildResponse(o.siteCode, "ItemCheckedOut", ncip.OutcomeSuccess)

	due := strings.TrimSpace(doc.Text("/NCIPMessage/ItemCheckedOut/DateDue"))
	if due == "" || !bytes.Contains(res.Body, []byte("loan_id")) {
		return response
	}

	loan, err := alma.ParseLoan(res.Body)
	if err != nil {
		o.logger.Warn("cannot parse created loan, due date not set", "error", err)
		return response
	}
	if putRes, err := o.loans.UpdateDueDate(ctx, loan, due); err != nil {
		o.logger.Warn("due date update failed", "loan_id", loan.LoanID(), "error", err)
	} else if !putRes.OK() {
		o.logger.Warn("due date update rejected",
			"loan_id", loan.LoanID(), "status", putRes.StatusCode, "body", string(putRes.Body))
	}

	return response
}

// ItemRenewed replays an ItemRenewed notification as a due-date change on
// the matching active loan.
func (o *Orchestrator) ItemRenewed(ctx context.Context, doc *ncip.Document) *ncip.Document {
	problem := ncip.BuildResponse(o.siteCode, "ItemRenewed", ncip.OutcomeProblem)

	due := strings.TrimSpace(doc.Text("/NCIPMessage/ItemRenewed/DateDue"))
	if due == "" {
		o.logger.Warn("renewal without a due date")
		return problem
	}

	barcode := visibleItemBarcode(doc, "ItemRenewed")
	userID := doc.Text("/NCIPMessage/ItemRenewed/UniqueUserId/UserIdentifierValue")
	if strings.TrimSpace(barcode) == "" || userID == "" {
		o.logger.Warn("renewal missing barcode or user id", "user_id", userID)
		return problem
	}

	loans, err := o.loans.UserLoans(ctx, userID)
	if err != nil {
		o.logger.Error("loan lookup failed", "user_id", userID, "error", err)
		return problem
	}
	loan := alma.FindLoan(loans, barcode)
	if loan == nil {
		o.logger.Warn("no active loan for barcode", "user_id", userID, "barcode", barcode)
		return problem
	}

	res, err := o.loans.UpdateDueDate(ctx, loan, due)
	if err != nil {
		o.logger.Error("due date update failed", "loan_id", loan.LoanID(), "error", err)
		return problem
	}
	if !res.OK() {
		o.logger.Warn("due date update rejected",
			"loan_id", loan.LoanID(), "status", res.StatusCode, "body", string(res.Body))
		return problem
	}

	return ncip.BuildResponse(o.siteCode, "ItemRenewed", ncip.OutcomeSuccess)
}

// visibleItemBarcode returns the visible item identifier typed as a
// barcode, or "" when the notification carries none.
func visibleItemBarcode(doc *ncip.Document, requestType string) string {
	base := "/NCIPMessage/" + requestType
	for _, visible := range doc.FindElements(base + "/ItemOptionalFields/ItemDescription/VisibleItemId") {
		idType := visible.FindElement("VisibleItemIdentifierType/Value")
		if idType == nil || idType.Text() != "Barcode" {
			continue
		}
		if id := visible.FindElement("VisibleItemIdentifier"); id != nil {
			return id.Text()
		}
	}
	return ""
}
