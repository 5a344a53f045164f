package clock

import (
	"sync"
	"time"
)

// DayLayout формат календарного дня, которым помечаются счетчики ссылок
const DayLayout = "2006-01-02"

// Clock источник текущего времени.
// Вся логика экспирации и anti-cheat проверок получает время только через него.
type Clock interface {
	Now() time.Time
}

// System использует системные часы (UTC, точность до миллисекунд).
type System struct{}

// Now возвращает текущее время
func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Manual часы, которые двигаются только вручную. Используются в тестах.
type Manual struct {
	now time.Time
	mu  sync.Mutex
}

// NewManual создает часы, остановленные на моменте start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now возвращает текущее значение часов
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// Set устанавливает часы в заданный момент
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = t
}

// Advance сдвигает часы вперед на d и возвращает новое значение
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
	return m.now
}

// Day возвращает календарный день момента t в зоне loc.
// nil loc означает UTC.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}
