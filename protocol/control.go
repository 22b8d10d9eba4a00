package protocol

import (
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// SendControl sends one CONTROL packet to a running receiver. Receivers do
// not acknowledge CONTROL packets.
func SendControl(connector Connector, remote net.Addr, command string, value float64) error {
	command = strings.ToUpper(strings.TrimSpace(command))
	if command != CommandLoss && command != CommandWindow {
		return &ConfigError{"control command", command, fmt.Sprintf("must be %s or %s", CommandLoss, CommandWindow)}
	}
	if command == CommandLoss {
		if err := validateLossProbability(value); err != nil {
			return err
		}
	}
	if command == CommandWindow && value < 1 {
		return &ConfigError{"window size", value, "must be at least 1"}
	}

	control := createControlSegment(command, value)
	if _, _, err := connector.Write(control.buffer, remote); err != nil {
		return fmt.Errorf("sending %s control: %w", command, err)
	}
	Logger.WithFields(logrus.Fields{
		"component": "control",
		"command":   command,
		"value":     value,
		"remote":    remote.String(),
	}).Info("control packet sent")
	return nil
}
