package profile

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем профилей.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// EligibleFilter - параметры выборки кандидатов.
type EligibleFilter struct {
	// Exclude - ID, которые не должны попасть в выборку.
	Exclude []ID

	// VisibleOnly - только видимые профили.
	VisibleOnly bool
}

// MutateFunc меняет профиль внутри блокировки. Ошибка отменяет изменения.
type MutateFunc func(p *Profile) error

// PairFunc меняет два профиля внутри одной блокировки.
// Аргументы передаются в порядке вызова UpdatePair, а не в порядке блокировки.
type PairFunc func(first, second *Profile) error

// Stats - агрегаты для оператора.
type Stats struct {
	Total           int
	Visible         int
	CreatedToday    int
	CreatedLast24h  int
	WithAttachments int
	TotalLikes      int
	TotalMatches    int // пары, не участники
}

// Repository определяет операции с профилями.
type Repository interface {
	// Create сохраняет новый профиль.
	// Возвращает ErrProfileExists, если профиль с таким ID уже есть.
	Create(ctx context.Context, p *Profile) error

	// Get возвращает копию профиля.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	Get(ctx context.Context, id ID) (*Profile, error)

	// GetMany возвращает найденные профили в порядке ids; отсутствующие пропускаются.
	GetMany(ctx context.Context, ids []ID) ([]*Profile, error)

	// ListEligible возвращает профили для подбора кандидатов.
	// Не берёт блокировок, которые мешали бы UpdatePair.
	ListEligible(ctx context.Context, filter EligibleFilter) ([]*Profile, error)

	// Update атомарно меняет один профиль.
	Update(ctx context.Context, id ID, fn MutateFunc) (*Profile, error)

	// UpdatePair атомарно меняет два профиля: оба изменения сохраняются
	// вместе или не сохраняются вовсе. Блокировки берутся в порядке возрастания ID.
	// Если какого-то профиля нет, fn получает nil на его месте.
	UpdatePair(ctx context.Context, a, b ID, fn PairFunc) error

	// Delete удаляет профиль. Ссылки на него в чужих книгах не чистятся.
	// Возвращает ErrProfileNotFound, если профиля нет.
	Delete(ctx context.Context, id ID) error

	// Stats считает агрегаты на момент now.
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
