package alma

import (
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
)

// Loan wraps a single Alma item_loan fragment. It exists only within one
// orchestration run: obtained from a create-loan response or a loan list,
// mutated once to set the due date, and sent back.
type Loan struct {
	root *etree.Element
}

// ParseLoan parses a standalone item_loan document, such as the body of a
// create-loan response.
func ParseLoan(data []byte) (*Loan, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing loan: %w", err)
	}
	root := tree.Root()
	if root == nil || root.Tag != "item_loan" {
		return nil, fmt.Errorf("parsing loan: expected item_loan root")
	}
	return &Loan{root: root}, nil
}

// ParseLoanList parses an item_loans list document as returned by the
// user-loans API.
func ParseLoanList(data []byte) ([]*Loan, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing loan list: %w", err)
	}
	var loans []*Loan
	for _, el := range tree.FindElements("/item_loans/item_loan") {
		loans = append(loans, &Loan{root: el})
	}
	return loans, nil
}

// FindLoan returns the loan with an exactly matching item barcode, or nil.
func FindLoan(loans []*Loan, barcode string) *Loan {
	for _, loan := range loans {
		if loan.Barcode() == barcode {
			return loan
		}
	}
	return nil
}

func (l *Loan) text(tag string) string {
	if el := l.root.SelectElement(tag); el != nil {
		return el.Text()
	}
	return ""
}

// LoanID returns the Alma loan identifier.
func (l *Loan) LoanID() string { return l.text("loan_id") }

// UserID returns the Alma user identifier the loan belongs to.
func (l *Loan) UserID() string { return l.text("user_id") }

// Barcode returns the item barcode.
func (l *Loan) Barcode() string { return l.text("item_barcode") }

// DueDate returns the loan's due date.
func (l *Loan) DueDate() string { return l.text("due_date") }

// SetDueDate overwrites the loan's due date, creating the element if the
// fragment lacks one.
func (l *Loan) SetDueDate(due string) {
	el := l.root.SelectElement("due_date")
	if el == nil {
		el = l.root.CreateElement("due_date")
	}
	el.SetText(due)
}

// Bytes serializes the loan fragment with a UTF-8 XML declaration. Alma
// rejects PUT bodies declaring any other encoding.
func (l *Loan) Bytes() ([]byte, error) {
	tree := etree.NewDocument()
	tree.SetRoot(l.root.Copy())
	raw, err := tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing loan: %w", err)
	}
	return append([]byte(xml.Header), raw...), nil
}
