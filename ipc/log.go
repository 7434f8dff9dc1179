package ipc

import (
	"fmt"

	"github.com/rs/zerolog"
)

// NewLogMessage builds a control message for the internal logging
// channel: a line of peer-side diagnostics carried in-band.
func NewLogMessage(layout Layout, line string) (*Message, error) {
	m, err := New(layout, RoutingControl, LoggingTypeID, Options{Name: "ipc.log"})
	if err != nil {
		return nil, err
	}
	m.WriteString(line)
	return m, nil
}

// DispatchLog forwards a logging-channel message to the local sink.
func DispatchLog(sink zerolog.Logger, m *Message) error {
	if m.Type() != LoggingTypeID {
		return fmt.Errorf("%w: type %#x on logging channel", ErrProtocolViolation, m.Type())
	}
	line, err := m.Iter().ReadString()
	if err != nil {
		return err
	}
	sink.Info().Str("source", "peer").Msg(line)
	return nil
}
