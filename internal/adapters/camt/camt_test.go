package camt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotification = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.054.001.02">
  <BkToCstmrDbtCdtNtfctn>
    <GrpHdr><MsgId>MSG-1</MsgId></GrpHdr>
    <Ntfctn>
      <Id>NTFCTN-1</Id>
      <Acct><Id><IBAN>CH9300762011623852957</IBAN></Id></Acct>
      <Ntry>
        <Amt Ccy="CHF">150.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <BookgDt><Dt>2024-03-07</Dt></BookgDt>
        <NtryDtls>
          <TxDtls>
            <Refs><EndToEndId>E2E-77</EndToEndId></Refs>
            <RmtInf><Strd><CdtrRefInf><Ref>INV-2024-001</Ref></CdtrRefInf></Strd></RmtInf>
            <RltdPties><Cdtr><Nm>Acme Supplies AG</Nm></Cdtr></RltdPties>
          </TxDtls>
        </NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">42.50</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2024-03-08</Dt></BookgDt>
        <NtryDtls>
          <TxDtls>
            <Refs><EndToEndId>NOTPROVIDED</EndToEndId></Refs>
            <RmtInf><Ustrd>Rent March</Ustrd></RmtInf>
            <RltdPties><Dbtr><Nm>Jane Tenant</Nm></Dbtr></RltdPties>
          </TxDtls>
        </NtryDtls>
      </Ntry>
    </Ntfctn>
  </BkToCstmrDbtCdtNtfctn>
</Document>`

func TestSniff(t *testing.T) {
	assert.True(t, Sniff([]byte(sampleNotification)))
	assert.False(t, Sniff([]byte(`<Document><CstmrCdtTrfInitn/></Document>`)), "pain.001 is not camt.054")
	assert.False(t, Sniff([]byte(`{"not": "xml"}`)))
	assert.False(t, Sniff([]byte(`<Document><BkToCstmrDbtCdtNtfctn>`)), "truncated XML")
}

func TestDecode(t *testing.T) {
	notifications, err := Decode([]byte(sampleNotification))
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	n := notifications[0]
	assert.Equal(t, "NTFCTN-1", n.ID)
	assert.Equal(t, "CH9300762011623852957", n.Account)
	require.Len(t, n.Entries, 2)

	debit := n.Entries[0]
	assert.True(t, debit.Amount.Equal(decimal.RequireFromString("-150.00")))
	assert.Equal(t, "CHF", debit.Currency)
	assert.Equal(t, "INV-2024-001", debit.Reference, "structured ref wins over end-to-end id")
	assert.Equal(t, "Acme Supplies AG", debit.Counterparty, "debits name the creditor")
	assert.Equal(t, "2024-03-07", debit.BookingDate.Format("2006-01-02"))

	credit := n.Entries[1]
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, "Rent March", credit.Reference, "NOTPROVIDED end-to-end id is skipped")
	assert.Equal(t, "Jane Tenant", credit.Counterparty, "credits name the debtor")
}

func TestDecode_RejectsNonCAMT54(t *testing.T) {
	_, err := Decode([]byte(`<Document><CstmrCdtTrfInitn/></Document>`))
	assert.ErrorIs(t, err, ErrNotCAMT054)
}

func TestDecode_BadAmount(t *testing.T) {
	bad := `<Document><BkToCstmrDbtCdtNtfctn><Ntfctn><Id>N</Id>
	<Ntry><Amt Ccy="EUR">abc</Amt><CdtDbtInd>CRDT</CdtDbtInd></Ntry>
	</Ntfctn></BkToCstmrDbtCdtNtfctn></Document>`
	_, err := Decode([]byte(bad))
	assert.Error(t, err)
}
