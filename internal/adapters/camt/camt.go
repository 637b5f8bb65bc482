// Package camt sniffs and minimally decodes CAMT.054 (ISO 20022
// bank-to-customer debit/credit notification) files.
//
// This is not a schema validator. It extracts exactly the fields the
// reconciliation core consumes: entry amount with credit/debit sign,
// currency, remittance reference, counterparty and booking date. Everything
// else in the message is ignored.
package camt

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotCAMT054 reports that a file is well-formed XML but not a CAMT.054
// notification, or not XML at all.
var ErrNotCAMT054 = errors.New("not a CAMT.054 file")

// Markers that identify a CAMT.054 payload. A file qualifying as CAMT.054
// carries at least one of these.
var indicators = []string{
	"BkToCstmrDbtCdtNtfctn", // bank-to-customer debit/credit notification
	"camt.054",
	"CstmrPmtAdvce", // customer payment advice
}

// Notification is one decoded notification block of a CAMT.054 message.
type Notification struct {
	ID      string
	Account string // IBAN or other account id, when present
	Entries []Entry
}

// Entry is one booked entry of a notification.
type Entry struct {
	Amount       decimal.Decimal // signed: debits are negative
	Currency     string
	Reference    string
	Counterparty string
	BookingDate  time.Time
}

// Sniff reports whether the data looks like a CAMT.054 file: well-formed XML
// containing one of the known indicators.
func Sniff(data []byte) bool {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false
		}
	}
	content := string(data)
	for _, ind := range indicators {
		if strings.Contains(content, ind) {
			return true
		}
	}
	return false
}

// xmlDocument mirrors just enough of the CAMT.054 tree.
type xmlDocument struct {
	XMLName      xml.Name          `xml:"Document"`
	Notification []xmlNotification `xml:"BkToCstmrDbtCdtNtfctn>Ntfctn"`
}

type xmlNotification struct {
	ID      string     `xml:"Id"`
	IBAN    string     `xml:"Acct>Id>IBAN"`
	OtherID string     `xml:"Acct>Id>Othr>Id"`
	Entries []xmlEntry `xml:"Ntry"`
}

type xmlEntry struct {
	Amount      xmlAmount   `xml:"Amt"`
	CdtDbtInd   string      `xml:"CdtDbtInd"`
	BookingDate string      `xml:"BookgDt>Dt"`
	Details     []xmlTxDtls `xml:"NtryDtls>TxDtls"`
	EntryRef    string      `xml:"NtryRef"`
}

type xmlAmount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type xmlTxDtls struct {
	EndToEndID    string   `xml:"Refs>EndToEndId"`
	StructuredRef string   `xml:"RmtInf>Strd>CdtrRefInf>Ref"`
	Unstructured  []string `xml:"RmtInf>Ustrd"`
	DebtorName    string   `xml:"RltdPties>Dbtr>Pty>Nm"`
	DebtorNameV2  string   `xml:"RltdPties>Dbtr>Nm"`
	CreditorName  string   `xml:"RltdPties>Cdtr>Pty>Nm"`
	CreditorV2    string   `xml:"RltdPties>Cdtr>Nm"`
}

// Decode parses a CAMT.054 file into notifications. Files failing Sniff are
// rejected with ErrNotCAMT054.
func Decode(data []byte) ([]Notification, error) {
	if !Sniff(data) {
		return nil, ErrNotCAMT054
	}

	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode camt.054: %w", err)
	}
	if len(doc.Notification) == 0 {
		return nil, fmt.Errorf("%w: no notification blocks", ErrNotCAMT054)
	}

	notifications := make([]Notification, 0, len(doc.Notification))
	for _, n := range doc.Notification {
		account := n.IBAN
		if account == "" {
			account = n.OtherID
		}
		out := Notification{ID: n.ID, Account: account}
		for _, e := range n.Entries {
			entry, err := decodeEntry(e)
			if err != nil {
				return nil, err
			}
			out.Entries = append(out.Entries, entry)
		}
		notifications = append(notifications, out)
	}
	return notifications, nil
}

func decodeEntry(e xmlEntry) (Entry, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(e.Amount.Value))
	if err != nil {
		return Entry{}, fmt.Errorf("entry amount %q: %w", e.Amount.Value, err)
	}
	// DBIT means money left the account.
	if strings.EqualFold(e.CdtDbtInd, "DBIT") {
		amount = amount.Neg()
	}

	entry := Entry{
		Amount:   amount,
		Currency: e.Amount.Currency,
	}

	if e.BookingDate != "" {
		d, err := time.Parse("2006-01-02", e.BookingDate)
		if err != nil {
			return Entry{}, fmt.Errorf("entry booking date %q: %w", e.BookingDate, err)
		}
		entry.BookingDate = d
	}

	if len(e.Details) > 0 {
		d := e.Details[0]
		entry.Reference = pickReference(d, e.EntryRef)
		if amount.IsNegative() {
			entry.Counterparty = firstNonEmpty(d.CreditorName, d.CreditorV2)
		} else {
			entry.Counterparty = firstNonEmpty(d.DebtorName, d.DebtorNameV2)
		}
	} else if e.EntryRef != "" {
		entry.Reference = e.EntryRef
	}

	return entry, nil
}

// pickReference prefers the structured creditor reference, then a real
// end-to-end id, then unstructured remittance text, then the entry ref.
func pickReference(d xmlTxDtls, entryRef string) string {
	if d.StructuredRef != "" {
		return d.StructuredRef
	}
	if d.EndToEndID != "" && !strings.EqualFold(d.EndToEndID, "NOTPROVIDED") {
		return d.EndToEndID
	}
	for _, u := range d.Unstructured {
		if s := strings.TrimSpace(u); s != "" {
			return s
		}
	}
	return entryRef
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
