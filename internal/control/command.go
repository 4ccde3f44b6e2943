package control

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Autopilot/internal/fleet"
	"github.com/shaiso/Autopilot/internal/orchestrator"
)

// Name — имя команды управления.
type Name string

// Команды управления.
const (
	CommandStart          Name = "start"
	CommandStop           Name = "stop"
	CommandPause          Name = "pause"
	CommandResume         Name = "resume"
	CommandKillAll        Name = "kill_all"
	CommandLaunch         Name = "launch"
	CommandUpdateSettings Name = "update_settings"

	// CommandClearChannels удаляет все каналы.
	CommandClearChannels Name = "clear_channels"

	// CommandClearJoinRequests сбрасывает историю заявок
	// (всю или одного аккаунта).
	CommandClearJoinRequests Name = "clear_join_requests"
)

// Command — команда агенту (payload сообщения control.command).
type Command struct {
	Name Name `json:"command"`

	// Options — параметры прохода для start. nil — значения агента.
	Options *orchestrator.Options `json:"options,omitempty"`

	// Identity и TargetPath — для launch.
	Identity   string `json:"identity,omitempty"`
	TargetPath string `json:"target_path,omitempty"`

	// Settings — для update_settings.
	Settings *SettingsPayload `json:"settings,omitempty"`

	// AccountID — для clear_join_requests; nil — все аккаунты.
	AccountID *uuid.UUID `json:"account_id,omitempty"`
}

// SettingsPayload — границы TTL в секундах.
type SettingsPayload struct {
	MinTTLSec int `json:"min_ttl_sec"`
	MaxTTLSec int `json:"max_ttl_sec"`
}

// FleetSettings переводит секунды в fleet.Settings.
func (p SettingsPayload) FleetSettings() fleet.Settings {
	return fleet.Settings{
		MinTTL: time.Duration(p.MinTTLSec) * time.Second,
		MaxTTL: time.Duration(p.MaxTTLSec) * time.Second,
	}
}

// PayloadFromSettings — обратное преобразование для ответов API.
func PayloadFromSettings(s fleet.Settings) SettingsPayload {
	return SettingsPayload{
		MinTTLSec: int(s.MinTTL / time.Second),
		MaxTTLSec: int(s.MaxTTL / time.Second),
	}
}

// Validate проверяет, что у команды есть нужные ей поля.
func (c Command) Validate() error {
	switch c.Name {
	case CommandStart, CommandStop, CommandPause, CommandResume, CommandKillAll,
		CommandClearChannels, CommandClearJoinRequests:
		return nil
	case CommandLaunch:
		if c.Identity == "" || c.TargetPath == "" {
			return fmt.Errorf("%w: launch requires identity and target_path", ErrInvalidCommand)
		}
		return nil
	case CommandUpdateSettings:
		if c.Settings == nil {
			return fmt.Errorf("%w: update_settings requires settings", ErrInvalidCommand)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
}
