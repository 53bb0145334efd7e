package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/activecm/flowguard/pkg/flow"
	"github.com/activecm/flowguard/pkg/inference"
	"github.com/activecm/flowguard/pkg/normalizer"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type (
	//Result is the outcome of classifying a single flow
	Result struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Malicious  bool    `json:"malicious"`
	}

	//BatchItem pairs a flow of a batch with its result or its error
	BatchItem struct {
		UID    string
		Result Result
		Err    error
	}

	//Health describes whether the service can classify flows
	Health struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}

	//Service normalizes flows and scores them with the loaded classifier.
	//It holds no mutable state besides its metrics and may be shared by
	//any number of goroutines.
	Service struct {
		normalizer *normalizer.Normalizer
		adapter    *inference.Adapter
		malicious  map[string]struct{}
		log        *log.Logger
		metrics    *metrics
	}
)

// New builds a classification service. maliciousLabels selects which labels
// set the malicious flag, when empty the label convention decides. Metrics are
// registered with reg unless it is nil.
func New(norm *normalizer.Normalizer, adapter *inference.Adapter, maliciousLabels []string,
	logger *log.Logger, reg prometheus.Registerer) (*Service, error) {

	if norm == nil {
		return nil, fmt.Errorf("classification service requires a normalizer")
	}
	if adapter == nil || adapter.Labels() == nil {
		return nil, fmt.Errorf("classification service requires an inference adapter with a label table")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register classification metrics: %w", err)
	}

	s := &Service{
		normalizer: norm,
		adapter:    adapter,
		malicious:  maliciousSet(adapter.Labels(), maliciousLabels),
		log:        logger,
		metrics:    m,
	}

	for _, label := range maliciousLabels {
		if !containsLabel(adapter.Labels().Labels(), label) {
			logger.WithField("label", label).Warn("Malicious label is not produced by the classifier")
		}
	}
	return s, nil
}

func maliciousSet(table *inference.LabelTable, configured []string) map[string]struct{} {
	set := make(map[string]struct{})
	if len(configured) > 0 {
		for _, label := range configured {
			set[label] = struct{}{}
		}
		return set
	}
	if table.Convention() == inference.Binary {
		set[inference.MaliciousLabel] = struct{}{}
		return set
	}
	for _, label := range table.Labels() {
		if !strings.EqualFold(label, inference.BenignLabel) {
			set[label] = struct{}{}
		}
	}
	return set
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// Classify normalizes and scores a single flow. Input checks, a nil record
// included, belong to flow.Record.Validate and the normalizer, classifier
// panics are recovered by the inference adapter. Every failure comes back as
// a typed error.
func (s *Service) Classify(rec *flow.Record) (Result, error) {
	start := time.Now()
	res, err := s.classify(rec)
	s.metrics.observe(start, res.Label, err)

	if err != nil {
		entry := s.log.WithFields(log.Fields{
			"kind":  KindOf(err),
			"error": err.Error(),
		})
		if rec != nil && rec.UID != "" {
			entry = entry.WithField("uid", rec.UID)
		}
		if IsClientError(err) {
			entry.Debug("Rejected flow record")
		} else {
			entry.Error("Failed to classify flow record")
		}
	}
	return res, err
}

func (s *Service) classify(rec *flow.Record) (Result, error) {
	vector, err := s.normalizer.Normalize(rec)
	if err != nil {
		return Result{}, err
	}

	pred, err := s.adapter.Predict(vector)
	if err != nil {
		return Result{}, err
	}

	_, malicious := s.malicious[pred.Label]
	return Result{
		Label:      pred.Label,
		Confidence: pred.Confidence,
		Malicious:  malicious,
	}, nil
}

// ClassifyBatch classifies each flow independently. A failing flow does not
// affect the rest of the batch.
func (s *Service) ClassifyBatch(recs []*flow.Record) []BatchItem {
	items := make([]BatchItem, len(recs))
	for i, rec := range recs {
		if rec != nil {
			items[i].UID = rec.UID
		}
		items[i].Result, items[i].Err = s.Classify(rec)
	}
	return items
}

// HealthCheck reports the service status
func (s *Service) HealthCheck() Health {
	return Health{
		Status:      "ok",
		ModelLoaded: s != nil && s.adapter.Loaded(),
	}
}

// IsMalicious reports whether label sets the malicious flag
func (s *Service) IsMalicious(label string) bool {
	_, ok := s.malicious[label]
	return ok
}

// MaliciousLabels returns the labels that set the malicious flag
func (s *Service) MaliciousLabels() []string {
	var out []string
	for _, label := range s.adapter.Labels().Labels() {
		if s.IsMalicious(label) {
			out = append(out, label)
		}
	}
	return out
}

// Columns returns the feature vector layout fed to the classifier
func (s *Service) Columns() []string {
	return s.normalizer.Columns()
}

// Labels returns the label table in use
func (s *Service) Labels() *inference.LabelTable {
	return s.adapter.Labels()
}
