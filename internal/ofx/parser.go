// Package ofx normalizes OFX/QFX statements into transactions the
// classification and reconciliation engines can consume.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/calloway/ledgerflow/internal/model"
)

// Parser implements OFX/QFX statement parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)

// preprocess fixes formatting quirks seen in real bank exports before
// handing the document to ofxgo.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	return severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
}

// ParseStatement parses an OFX/QFX document and returns normalized
// transactions from every bank and credit card statement it contains.
func (p *Parser) ParseStatement(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX document: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX document: %w", err)
	}

	var txns []model.Transaction
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		accountID := string(stmt.BankAcctFrom.AcctID)
		accountType := stmt.BankAcctFrom.AcctType.String()
		for _, ofxTxn := range stmt.BankTranList.Transactions {
			txns = append(txns, p.convert(ofxTxn, accountID, accountType))
		}
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		accountID := string(stmt.CCAcctFrom.AcctID)
		for _, ofxTxn := range stmt.BankTranList.Transactions {
			txns = append(txns, p.convert(ofxTxn, accountID, "CREDITCARD"))
		}
	}

	slog.Info("parsed OFX document", "transactions", len(txns))
	return txns, nil
}

// convert maps one OFX transaction onto the domain model, keeping the OFX
// sign convention: negative amounts are debits.
func (p *Parser) convert(ofxTxn ofxgo.Transaction, accountID, accountType string) model.Transaction {
	amount, _ := ofxTxn.TrnAmt.Float64()

	txn := model.Transaction{
		ID:           string(ofxTxn.FiTID),
		PostedDate:   ofxTxn.DtPosted.Time,
		Description:  p.describe(ofxTxn),
		AccountID:    accountID,
		AccountType:  accountType,
		CheckNumber:  string(ofxTxn.CheckNum),
		Amount:       amount,
		BankCategory: bankCategoryForType(ofxTxn.TrnType.String()),
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

// describe picks the most informative description field: payee name,
// then NAME, falling back to MEMO when NAME is generic.
func (p *Parser) describe(ofxTxn ofxgo.Transaction) string {
	if ofxTxn.Payee != nil && ofxTxn.Payee.Name != "" {
		return strings.TrimSpace(string(ofxTxn.Payee.Name))
	}
	name := strings.TrimSpace(string(ofxTxn.Name))
	if memo := strings.TrimSpace(string(ofxTxn.Memo)); memo != "" && isGenericDescription(name) {
		return memo
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "", "DEBIT", "CREDIT", "PAYMENT", "WITHDRAWAL", "DEPOSIT", "POS", "CHECK":
		return true
	}
	return false
}

// bankCategoryForType derives a category hint from the OFX transaction
// type, the only free signal OFX carries.
func bankCategoryForType(trnType string) string {
	switch trnType {
	case "INT":
		return "Interest"
	case "FEE", "SRVCHG":
		return "Service Charges Fees"
	case "DIRECTDEP":
		return "Payroll"
	default:
		return ""
	}
}
