package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteLedger posts movements to the external bank/POS movement endpoint.
type RemoteLedger struct {
	endpoint string
	client   *http.Client
}

func NewRemoteLedger(endpoint string) *RemoteLedger {
	return &RemoteLedger{endpoint: endpoint, client: &http.Client{Timeout: 15 * time.Second}}
}

type remoteMovement struct {
	BankID       string          `json:"bankId,omitempty"`
	PosID        string          `json:"posId,omitempty"`
	Entering     decimal.Decimal `json:"entering"`
	Emerging     decimal.Decimal `json:"emerging"`
	Currency     string          `json:"currency"`
	Description  string          `json:"description"`
	Direction    string          `json:"direction"`
	Type         string          `json:"type"`
	DocumentType string          `json:"documentType"`
	Date         time.Time       `json:"date"`
}

func toRemoteMovement(m Movement) remoteMovement {
	out := remoteMovement{
		Entering:     m.Entering,
		Emerging:     m.Emerging,
		Currency:     string(m.Currency),
		Description:  m.Description,
		Direction:    string(m.Direction),
		Type:         string(m.Type),
		DocumentType: m.DocumentType,
		Date:         m.Date,
	}
	if m.AccountKind == AccountPOS {
		out.PosID = m.AccountID
	} else {
		out.BankID = m.AccountID
	}
	return out
}

// Post sends a single movement. Any non-2xx response is a failure.
func (l *RemoteLedger) Post(ctx context.Context, m Movement) (string, error) {
	body, err := json.Marshal(toRemoteMovement(m))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("transfer:%s:%s", m.TransferID, m.Direction))
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post movement: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("movement endpoint status %d: %s", resp.StatusCode, string(msg))
	}
	var out struct {
		ID any `json:"id"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil && err != io.EOF {
		return "", fmt.Errorf("decode movement response: %w", err)
	}
	if out.ID == nil {
		return "", nil
	}
	return fmt.Sprint(out.ID), nil
}
