package fleet

import (
	"time"

	"github.com/shaiso/Autopilot/internal/actuator"
)

// Slot — запущенный процесс, закреплённый за идентичностью.
type Slot struct {
	Identity   string
	Handle     actuator.Handle
	TargetPath string
	StartedAt  time.Time
	TTL        time.Duration
}

// ExpiresAt возвращает момент истечения слота.
func (s *Slot) ExpiresAt() time.Time {
	return s.StartedAt.Add(s.TTL)
}

// Expired возвращает true, если now >= startedAt+ttl.
func (s *Slot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// SlotInfo — снимок слота для API и UI.
type SlotInfo struct {
	Identity   string        `json:"identity"`
	Handle     int           `json:"handle"`
	TargetPath string        `json:"target_path"`
	StartedAt  time.Time     `json:"started_at"`
	TTL        time.Duration `json:"ttl"`
	Remaining  time.Duration `json:"remaining"`
}

func (s *Slot) info(now time.Time) SlotInfo {
	return SlotInfo{
		Identity:   s.Identity,
		Handle:     int(s.Handle),
		TargetPath: s.TargetPath,
		StartedAt:  s.StartedAt,
		TTL:        s.TTL,
		Remaining:  max(0, s.ExpiresAt().Sub(now)),
	}
}

// Settings — границы TTL новых слотов.
type Settings struct {
	MinTTL time.Duration `json:"min_ttl"`
	MaxTTL time.Duration `json:"max_ttl"`
}

// Validate проверяет 0 < MinTTL <= MaxTTL.
func (s Settings) Validate() error {
	if s.MinTTL <= 0 || s.MaxTTL <= 0 || s.MinTTL > s.MaxTTL {
		return ErrInvalidSettings
	}
	return nil
}

// Причины вытеснения (метки метрик и событий).
const (
	ReasonCapacity = "capacity"
	ReasonExpired  = "expired"
	ReasonStale    = "stale"
	ReasonManual   = "manual"
	ReasonKillAll  = "kill_all"
)
