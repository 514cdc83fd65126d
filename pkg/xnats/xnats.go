// Package xnats publishes desk events (formed orders, confirmed hedges) on NATS JetStream.
package xnats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

const (
	SubjectOrderFormed    = "orders.formed"
	SubjectHedgeConfirmed = "hedges.confirmed"
)

// OrderFormed is sent once an order and its derived rows are stored.
type OrderFormed struct {
	OrderID         string          `json:"orderID"`
	Mode            string          `json:"mode"` // manual, optimized
	CommodityType   string          `json:"commodityType"`
	Quantity        decimal.Decimal `json:"quantity"`
	BuyPrice        decimal.Decimal `json:"buyPrice"`
	SellPrice       decimal.Decimal `json:"sellPrice"`
	Margin          decimal.Decimal `json:"margin"`
	BuyerTicketIDs  []int64         `json:"buyerTicketIDs"`
	SellerTicketIDs []int64         `json:"sellerTicketIDs"`
	StepErrors      []string        `json:"stepErrors,omitempty"`
	Time            int64           `json:"time"`
}

// HedgeConfirmed is sent when the hedge prefills of an order were persisted.
type HedgeConfirmed struct {
	OrderID  string  `json:"orderID"`
	HedgeIDs []int64 `json:"hedgeIDs"`
	Time     int64   `json:"time"`
}

// Publisher sends one event to a subject below the desk stream.
type Publisher interface {
	Publish(ctx context.Context, subject string, v interface{}) error
}

// JetStream publishes to "<stream>.<subject>".
type JetStream struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
}

// Connect dials NATS and makes sure the stream exists.
func Connect(url, stream string) (p *JetStream, err error) {
	nc, err := nats.Connect(url, nats.Name("metaldesk"))
	if err != nil {
		return
	}

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		nc.Close()
		return
	}

	stream = strings.ToUpper(stream)
	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{stream + ".>"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
	}

	return &JetStream{nc: nc, js: js, stream: stream}, nil
}

func (p *JetStream) Publish(ctx context.Context, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.stream+"."+subject, data, nats.Context(ctx))
	return err
}

func (p *JetStream) Close() {
	p.nc.Close()
}

// Nop drops every event, used when NATS is disabled.
type Nop struct{}

func (Nop) Publish(ctx context.Context, subject string, v interface{}) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Subject string
	Payload []byte
}

func (r *Recorder) Publish(ctx context.Context, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Subject: subject, Payload: data})
	return nil
}

// Subjects lists the subjects published so far, in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Subject)
	}
	return out
}
