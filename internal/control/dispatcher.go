package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Autopilot/internal/fleet"
	"github.com/shaiso/Autopilot/internal/mq"
	"github.com/shaiso/Autopilot/internal/orchestrator"
	"github.com/shaiso/Autopilot/internal/schema"
)

// Dispatcher принимает команды из очереди control.commands.
type Dispatcher struct {
	service *Service
	logger  *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(service *Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		service: service,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Handle — mq.Handler.
//
// Payload сначала проверяется схемой команды. Команды, которые не имеют смысла повторять (неизвестные,
// неполные, неуместные в текущем состоянии), отклоняются в DLQ.
// Остальные ошибки возвращаются для повторной доставки.
func (d *Dispatcher) Handle(ctx context.Context, msg *mq.Delivery) error {
	if msg.Message.Type != mq.MessageTypeCommand {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrReject, msg.Message.Type)
	}

	if err := schema.ValidateCommandValue(msg.Message.Payload); err != nil {
		d.logger.Warn("command payload rejected", "message_id", msg.Message.ID, "error", err)
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}

	cmd, err := mq.ParsePayload[Command](&msg.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}

	logger := d.logger.With("command", cmd.Name, "message_id", msg.Message.ID)

	if err := d.service.Execute(ctx, cmd); err != nil {
		if permanent(err) {
			logger.Warn("command rejected", "error", err)
			return fmt.Errorf("%w: %v", mq.ErrReject, err)
		}
		return err
	}

	logger.Info("command executed")
	return nil
}

// permanent — ошибки, которые повтор не исправит.
func permanent(err error) bool {
	for _, target := range []error{
		ErrUnknownCommand,
		ErrInvalidCommand,
		orchestrator.ErrAlreadyRunning,
		orchestrator.ErrNotRunning,
		fleet.ErrInvalidSettings,
		fleet.ErrTargetNotFound,
		fleet.ErrEmptyIdentity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
