// Package metrics exposes Prometheus counters for registrations, stamps and
// webhook parsing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/stampcard/internal/model"
)

// Recorder is what the service layer reports to.
type Recorder interface {
	RecordRegistration(flow string, returning bool)
	RecordStampMark(boothID, result string)
	RecordWebhookParse(source string, decrypted, degraded bool)
	RecordStorageError(op string)
}

// Stamp mark results.
const (
	MarkFilled        = "filled"
	MarkAlreadyMarked = "already_marked"
	MarkRejected      = "rejected"
)

// Collector records to Prometheus.
type Collector struct {
	registrations *prometheus.CounterVec
	stampMarks    *prometheus.CounterVec
	webhookParses *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers the counters on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_registrations_total",
			Help: "Registrations by flow and whether the registrant was returning.",
		}, []string{"flow", "returning"}),
		stampMarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_stamp_marks_total",
			Help: "Booth mark attempts by booth and result.",
		}, []string{"booth", "result"}),
		webhookParses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_webhook_parses_total",
			Help: "Webhook deliveries by recognised payload shape.",
		}, []string{"source", "decrypted", "degraded"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_storage_errors_total",
			Help: "Storage failures by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.registrations,
		c.stampMarks,
		c.webhookParses,
		c.storageErrors,
	)

	return c
}

func (c *Collector) RecordRegistration(flow string, returning bool) {
	c.registrations.WithLabelValues(flow, strconv.FormatBool(returning)).Inc()
}

// RecordStampMark only labels known booths; anything else is folded into
// "other" so a scanner sending junk cannot blow up cardinality.
func (c *Collector) RecordStampMark(boothID, result string) {
	c.stampMarks.WithLabelValues(boothLabel(boothID), result).Inc()
}

func (c *Collector) RecordWebhookParse(source string, decrypted, degraded bool) {
	c.webhookParses.WithLabelValues(source, strconv.FormatBool(decrypted), strconv.FormatBool(degraded)).Inc()
}

func (c *Collector) RecordStorageError(op string) {
	c.storageErrors.WithLabelValues(op).Inc()
}

func boothLabel(boothID string) string {
	if _, ok := model.BoothIndex(boothID); ok {
		return boothID
	}
	return "other"
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRegistration(string, bool)       {}
func (Nop) RecordStampMark(string, string)        {}
func (Nop) RecordWebhookParse(string, bool, bool) {}
func (Nop) RecordStorageError(string)             {}
