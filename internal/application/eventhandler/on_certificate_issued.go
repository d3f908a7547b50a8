package eventhandler

import (
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
	"github.com/earth-innovators/merit-engine/pkg/logger"
)

// CertificateIssuedHandler writes the audit trail for issued certificates
// and assigned membership numbers. Forced awards are logged at warning
// level so operator overrides stand out in the stream.
type CertificateIssuedHandler struct {
	log *logger.Logger
}

// NewCertificateIssuedHandler creates a new CertificateIssuedHandler.
func NewCertificateIssuedHandler(log *logger.Logger) *CertificateIssuedHandler {
	return &CertificateIssuedHandler{log: log}
}

// Handle implements shared.EventHandler.
func (h *CertificateIssuedHandler) Handle(event shared.Event) error {
	payload := event.Payload()

	switch event.EventType() {
	case shared.EventCertificateIssued:
		fields := []logger.Field{
			logger.UserID(event.AggregateID()),
			logger.CertificateNumber(asString(payload["certificate_number"])),
			logger.Role(asString(payload["role"])),
		}
		if forced, _ := payload["forced"].(bool); forced {
			h.log.Warn("certificate issued by operator override", fields...)
		} else {
			h.log.Info("certificate issued", fields...)
		}

	case shared.EventNumberAssigned:
		h.log.Info("membership number assigned",
			logger.UserID(event.AggregateID()),
			logger.MembershipNumber(asString(payload["number"])),
			logger.Role(asString(payload["role"])),
		)
	}
	return nil
}

// Register wires the engine's subscribers onto a bus.
func Register(bus shared.EventSubscriber, standings StandingsInvalidator, log *logger.Logger) error {
	points := NewPointsRecordedHandler(standings, log)
	if err := bus.Subscribe(shared.EventPointsRecorded, points.Handle); err != nil {
		return err
	}

	certs := NewCertificateIssuedHandler(log)
	if err := bus.Subscribe(shared.EventCertificateIssued, certs.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventNumberAssigned, certs.Handle)
}
