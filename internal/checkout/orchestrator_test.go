package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/alma"
	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/pkg/ncip"
)

const siteCode = "cmel"

// fakeLoanService records calls and plays back scripted results.
type fakeLoanService struct {
	createResult *alma.Result
	createErr    error
	updateResult *alma.Result
	updateErr    error
	loans        []*alma.Loan
	loansErr     error

	createCalls []createCall
	updateCalls []updateCall
	loansCalls  []string
}

type createCall struct {
	userID, itemID string
}

type updateCall struct {
	userID, loanID, due string
}

func (f *fakeLoanService) CreateLoan(ctx context.Context, userID, itemID string) (*alma.Result, error) {
	f.createCalls = append(f.createCalls, createCall{userID, itemID})
	return f.createResult, f.createErr
}

func (f *fakeLoanService) UpdateDueDate(ctx context.Context, loan *alma.Loan, due string) (*alma.Result, error) {
	f.updateCalls = append(f.updateCalls, updateCall{loan.UserID(), loan.LoanID(), due})
	return f.updateResult, f.updateErr
}

func (f *fakeLoanService) UserLoans(ctx context.Context, userID string) ([]*alma.Loan, error) {
	f.loansCalls = append(f.loansCalls, userID)
	return f.loans, f.loansErr
}

func parse(t *testing.T, xml string) *ncip.Document {
	t.Helper()
	doc, err := ncip.Parse([]byte(xml))
	require.NoError(t, err)
	return doc
}

func checkedOutRequest(due string) string {
	dateDue := ""
	if due != "" {
		dateDue = "<DateDue>" + due + "</DateDue>"
	}
	return `<NCIPMessage><ItemCheckedOut>
		<UniqueUserId><UserIdentifierValue>U1</UserIdentifierValue></UniqueUserId>
		<ItemOptionalFields><ItemDescription><VisibleItemId>
			<VisibleItemIdentifierType><Value>Barcode</Value></VisibleItemIdentifierType>
			<VisibleItemIdentifier>B1</VisibleItemIdentifier>
		</VisibleItemId></ItemDescription></ItemOptionalFields>
		` + dateDue + `
	</ItemCheckedOut></NCIPMessage>`
}

const createdLoan = `<item_loan><loan_id>42</loan_id><user_id>U1</user_id><item_barcode>B1</item_barcode><due_date>2023-12-01Z</due_date></item_loan>`

func assertProblem(t *testing.T, doc *ncip.Document, responseType string) {
	t.Helper()
	assert.Equal(t, responseType+"Response", doc.RequestType())
	assert.NotNil(t, doc.FindElement("//Problem"))
	assert.Equal(t, siteCode,
		doc.Text("/NCIPMessage/"+responseType+"Response/ResponseHeader/FromAgencyId/UniqueAgencyId/Value"))
}

func assertSuccess(t *testing.T, doc *ncip.Document, responseType string) {
	t.Helper()
	assert.Equal(t, responseType+"Response", doc.RequestType())
	assert.Nil(t, doc.FindElement("//Problem"))
	assert.Equal(t, siteCode,
		doc.Text("/NCIPMessage/"+responseType+"Response/ResponseHeader/FromAgencyId/UniqueAgencyId/Value"))
}

func TestItemCheckedOut_CreatesLoanAndSetsDueDate(t *testing.T) {
	fake := &fakeLoanService{
		createResult: &alma.Result{StatusCode: http.StatusOK, Body: []byte(createdLoan)},
		updateResult: &alma.Result{StatusCode: http.StatusOK},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemCheckedOut(context.Background(), parse(t, checkedOutRequest("2024-01-01Z")))

	assertSuccess(t, resp, "ItemCheckedOut")
	require.Len(t, fake.createCalls, 1)
	assert.Equal(t, createCall{"U1", "B1"}, fake.createCalls[0])
	require.Len(t, fake.updateCalls, 1)
	assert.Equal(t, updateCall{"U1", "42", "2024-01-01Z"}, fake.updateCalls[0])
}

func TestItemCheckedOut_CreateFails_NoDueDateCall(t *testing.T) {
	fake := &fakeLoanService{
		createResult: &alma.Result{StatusCode: http.StatusBadRequest, Body: []byte("<web_service_result/>")},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemCheckedOut(context.Background(), parse(t, checkedOutRequest("2024-01-01Z")))

	assertProblem(t, resp, "ItemCheckedOut")
	assert.Len(t, fake.createCalls, 1)
	assert.Empty(t, fake.updateCalls)
}

func TestItemCheckedOut_TransportFailure(t *testing.T) {
	fake := &fakeLoanService{createErr: errors.New("connection refused")}
	o := New(fake, siteCode, nil)

	resp := o.ItemCheckedOut(context.Background(), parse(t, checkedOutRequest("2024-01-01Z")))

	assertProblem(t, resp, "ItemCheckedOut")
	assert.Empty(t, fake.updateCalls)
}

func TestItemCheckedOut_NoDueDate_SkipsSecondCall(t *testing.T) {
	fake := &fakeLoanService{
		createResult: &alma.Result{StatusCode: http.StatusOK, Body: []byte(createdLoan)},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemCheckedOut(context.Background(), parse(t, checkedOutRequest("")))

	assertSuccess(t, resp, "ItemCheckedOut")
	assert.Empty(t, fake.updateCalls)
}

func TestItemCheckedOut_DueDateFailureKeepsSuccess(t *testing.T) {
	// The loan was created; the item is already with the patron. A failed
	// due-date call must not turn the checkout into a problem.
	fake := &fakeLoanService{
		createResult: &alma.Result{StatusCode: http.StatusOK, Body: []byte(createdLoan)},
		updateResult: &alma.Result{StatusCode: http.StatusConflict, Body: []byte("stale")},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemCheckedOut(context.Background(), parse(t, checkedOutRequest("2024-01-01Z")))

	assertSuccess(t, resp, "ItemCheckedOut")
	assert.Len(t, fake.updateCalls, 1)
}

func TestItemCheckedOut_NoLoanIDInBody_SkipsSecondCall(t *testing.T) {
	fake := &fakeLoanService{
		createResult: &alma.Result{StatusCode: http.StatusOK, Body: []byte("<ok/>")},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemCheckedOut(context.Background(), parse(t, checkedOutRequest("2024-01-01Z")))

	assertSuccess(t, resp, "ItemCheckedOut")
	assert.Empty(t, fake.updateCalls)
}

func TestItemCheckedOut_FallsBackToUniqueItemID(t *testing.T) {
	fake := &fakeLoanService{
		createResult: &alma.Result{StatusCode: http.StatusOK, Body: []byte(createdLoan)},
	}
	o := New(fake, siteCode, nil)

	doc := parse(t, `<NCIPMessage><ItemCheckedOut>
		<UniqueUserId><UserIdentifierValue>U1</UserIdentifierValue></UniqueUserId>
		<UniqueItemId><ItemIdentifierValue>I-77</ItemIdentifierValue></UniqueItemId>
	</ItemCheckedOut></NCIPMessage>`)
	o.ItemCheckedOut(context.Background(), doc)

	require.Len(t, fake.createCalls, 1)
	assert.Equal(t, createCall{"U1", "I-77"}, fake.createCalls[0])
}

func renewedRequest(barcode, userID, due string) string {
	return `<NCIPMessage><ItemRenewed>
		<UniqueUserId><UserIdentifierValue>` + userID + `</UserIdentifierValue></UniqueUserId>
		<ItemOptionalFields><ItemDescription><VisibleItemId>
			<VisibleItemIdentifierType><Value>Barcode</Value></VisibleItemIdentifierType>
			<VisibleItemIdentifier>` + barcode + `</VisibleItemIdentifier>
		</VisibleItemId></ItemDescription></ItemOptionalFields>
		<DateDue>` + due + `</DateDue>
	</ItemRenewed></NCIPMessage>`
}

func userLoans(t *testing.T) []*alma.Loan {
	t.Helper()
	loans, err := alma.ParseLoanList([]byte(`<item_loans>
		<item_loan><loan_id>7</loan_id><user_id>U2</user_id><item_barcode>B2</item_barcode><due_date>2024-01-15Z</due_date></item_loan>
		<item_loan><loan_id>8</loan_id><user_id>U2</user_id><item_barcode>B3</item_barcode><due_date>2024-01-20Z</due_date></item_loan>
	</item_loans>`))
	require.NoError(t, err)
	return loans
}

func TestItemRenewed_UpdatesDueDate(t *testing.T) {
	fake := &fakeLoanService{
		loans:        userLoans(t),
		updateResult: &alma.Result{StatusCode: http.StatusOK},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemRenewed(context.Background(), parse(t, renewedRequest("B2", "U2", "2024-02-02Z")))

	assertSuccess(t, resp, "ItemRenewed")
	assert.Equal(t, []string{"U2"}, fake.loansCalls)
	require.Len(t, fake.updateCalls, 1)
	assert.Equal(t, updateCall{"U2", "7", "2024-02-02Z"}, fake.updateCalls[0])
}

func TestItemRenewed_DueDateFailureIsTerminal(t *testing.T) {
	// Unlike checkout, renewal exists only to move the due date.
	fake := &fakeLoanService{
		loans:        userLoans(t),
		updateResult: &alma.Result{StatusCode: http.StatusBadRequest, Body: []byte("rejected")},
	}
	o := New(fake, siteCode, nil)

	resp := o.ItemRenewed(context.Background(), parse(t, renewedRequest("B2", "U2", "2024-02-02Z")))

	assertProblem(t, resp, "ItemRenewed")
	assert.Len(t, fake.updateCalls, 1)
}

func TestItemRenewed_NoMatchingLoan(t *testing.T) {
	fake := &fakeLoanService{loans: userLoans(t)}
	o := New(fake, siteCode, nil)

	resp := o.ItemRenewed(context.Background(), parse(t, renewedRequest("B9", "U2", "2024-02-02Z")))

	assertProblem(t, resp, "ItemRenewed")
	assert.Empty(t, fake.updateCalls)
}

func TestItemRenewed_LoanLookupFails(t *testing.T) {
	fake := &fakeLoanService{loansErr: errors.New("boom")}
	o := New(fake, siteCode, nil)

	resp := o.ItemRenewed(context.Background(), parse(t, renewedRequest("B2", "U2", "2024-02-02Z")))

	assertProblem(t, resp, "ItemRenewed")
	assert.Empty(t, fake.updateCalls)
}

func TestItemRenewed_MissingDueDate(t *testing.T) {
	fake := &fakeLoanService{}
	o := New(fake, siteCode, nil)

	doc := parse(t, `<NCIPMessage><ItemRenewed>
		<UniqueUserId><UserIdentifierValue>U2</UserIdentifierValue></UniqueUserId>
	</ItemRenewed></NCIPMessage>`)
	resp := o.ItemRenewed(context.Background(), doc)

	assertProblem(t, resp, "ItemRenewed")
	assert.Empty(t, fake.loansCalls)
}

func TestItemRenewed_BlankBarcode(t *testing.T) {
	fake := &fakeLoanService{}
	o := New(fake, siteCode, nil)

	resp := o.ItemRenewed(context.Background(), parse(t, renewedRequest("  ", "U2", "2024-02-02Z")))

	assertProblem(t, resp, "ItemRenewed")
	assert.Empty(t, fake.loansCalls)
}

func TestItemRenewed_MissingUserID(t *testing.T) {
	fake := &fakeLoanService{}
	o := New(fake, siteCode, nil)

	doc := parse(t, `<NCIPMessage><ItemRenewed>
		<ItemOptionalFields><ItemDescription><VisibleItemId>
			<VisibleItemIdentifierType><Value>Barcode</Value></VisibleItemIdentifierType>
			<VisibleItemIdentifier>B2</VisibleItemIdentifier>
		</VisibleItemId></ItemDescription></ItemOptionalFields>
		<DateDue>2024-02-02Z</DateDue>
	</ItemRenewed></NCIPMessage>`)
	resp := o.ItemRenewed(context.Background(), doc)

	assertProblem(t, resp, "ItemRenewed")
	assert.Empty(t, fake.loansCalls)
}
