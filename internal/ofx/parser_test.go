package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260101120000[0:GMT]
<DTEND>20260131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20260125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2026012501
<CHECKNUM>1234
<NAME>CHECK
<MEMO>Rent payment to landlord
</STMTTRN>
<STMTTRN>
<TRNTYPE>INT
<DTPOSTED>20260131120000[0:GMT]
<TRNAMT>1.17
<FITID>2026013101
<NAME>INTEREST PAYMENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20260131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseStatement(t *testing.T) {
	parser := NewParser()
	txns, err := parser.ParseStatement(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, txns, 3)

	coffee := txns[0]
	assert.Equal(t, "2026011501", coffee.ID)
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.Description)
	assert.Equal(t, -25.50, coffee.Amount)
	assert.Equal(t, "1234567890", coffee.AccountID)
	assert.Equal(t, "CHECKING", coffee.AccountType)
	assert.NotEmpty(t, coffee.Hash)
	assert.True(t, coffee.IsDebit())

	// Generic NAME falls back to MEMO.
	check := txns[1]
	assert.Equal(t, "Rent payment to landlord", check.Description)
	assert.Equal(t, "1234", check.CheckNumber)

	// Transaction type maps to a bank category hint.
	interest := txns[2]
	assert.Equal(t, "Interest", interest.BankCategory)
	assert.False(t, interest.IsDebit())
}

func TestParseStatement_LowercaseSeverity(t *testing.T) {
	parser := NewParser()
	doc := strings.Replace(sampleBankOFX, "<SEVERITY>INFO", "<SEVERITY>Info", 2)
	_, err := parser.ParseStatement(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
}

func TestParseStatement_Malformed(t *testing.T) {
	parser := NewParser()
	_, err := parser.ParseStatement(context.Background(), strings.NewReader("not an ofx document"))
	assert.Error(t, err)
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("DEBIT"))
	assert.True(t, isGenericDescription("check"))
	assert.True(t, isGenericDescription(""))
	assert.False(t, isGenericDescription("STARBUCKS"))
}
