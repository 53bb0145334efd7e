package stream

import (
	"fmt"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/pkg/classify"
	"github.com/activecm/flowguard/pkg/flow"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type (
	// Classifier scores a single flow record
	Classifier interface {
		Classify(rec *flow.Record) (classify.Result, error)
	}

	// Prediction is published for every flow that was classified
	Prediction struct {
		UID        string  `json:"uid,omitempty"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Malicious  bool    `json:"malicious"`
	}

	// Failure is published in place of a prediction when a flow is rejected
	Failure struct {
		UID    string `json:"uid,omitempty"`
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}

	// Subscriber classifies the flow records published on a NATS subject
	// and publishes the outcome on another
	Subscriber struct {
		nc      *nats.Conn
		sub     *nats.Subscription
		closed  chan struct{}
		service Classifier
		conf    config.StreamStaticCfg
		log     *log.Logger
	}
)

// NewSubscriber connects to the NATS server named in conf
func NewSubscriber(conf config.StreamStaticCfg, service Classifier, logger *log.Logger) (*Subscriber, error) {
	closed := make(chan struct{})
	nc, err := nats.Connect(conf.URL,
		nats.Name("flowguard"),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", conf.URL, err)
	}
	logger.WithField("url", conf.URL).Info("Connected to NATS")
	return &Subscriber{nc: nc, closed: closed, service: service, conf: conf, log: logger}, nil
}

// Start subscribes to the input subject. Subscribers sharing a queue group
// split the incoming records between them.
func (s *Subscriber) Start() error {
	var err error
	if s.conf.QueueGroup != "" {
		s.sub, err = s.nc.QueueSubscribe(s.conf.InputSubject, s.conf.QueueGroup, s.handle)
	} else {
		s.sub, err = s.nc.Subscribe(s.conf.InputSubject, s.handle)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.conf.InputSubject, err)
	}

	s.log.WithFields(log.Fields{
		"subject": s.conf.InputSubject,
		"queue":   s.conf.QueueGroup,
		"output":  s.conf.OutputSubject,
	}).Info("Waiting for flow records")
	return nil
}

// handle classifies one message. Requests carrying a reply subject are
// answered directly in addition to the output subject.
func (s *Subscriber) handle(msg *nats.Msg) {
	payload, err := process(s.service, msg.Data)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode classification result")
		return
	}

	if s.conf.OutputSubject != "" {
		if err := s.nc.Publish(s.conf.OutputSubject, payload); err != nil {
			s.log.WithError(err).WithField("subject", s.conf.OutputSubject).Error("Failed to publish classification result")
		}
	}
	if msg.Reply != "" {
		if err := msg.Respond(payload); err != nil {
			s.log.WithError(err).WithField("subject", msg.Reply).Error("Failed to reply with classification result")
		}
	}
}

// Close drains the subscription so that records already received are still
// answered, then waits for the connection to close
func (s *Subscriber) Close() {
	if s.nc == nil || s.nc.IsClosed() {
		return
	}
	if err := s.nc.Drain(); err != nil {
		s.log.WithError(err).Warn("Failed to drain NATS connection")
		s.nc.Close()
	}
	<-s.closed
	s.log.Info("NATS connection closed")
}

// process turns a JSON encoded flow record into the JSON encoded message
// published in response
func process(service Classifier, data []byte) ([]byte, error) {
	rec, err := flow.Decode(data)
	if err != nil {
		return encode(Failure{Error: classify.KindOf(err), Detail: err.Error()})
	}

	res, err := service.Classify(rec)
	if err != nil {
		return encode(Failure{UID: rec.UID, Error: classify.KindOf(err), Detail: err.Error()})
	}

	return encode(Prediction{
		UID:        rec.UID,
		Label:      res.Label,
		Confidence: res.Confidence,
		Malicious:  res.Malicious,
	})
}

func encode(v interface{}) ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
}
