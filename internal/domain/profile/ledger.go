package profile

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// Книга лайков: кого лайкнул я, кто лайкнул меня, с кем мэтч.
// Единственный код, который меняет эти множества. Счётчики всегда
// пересчитываются из размеров множеств одной функцией.
// ══════════════════════════════════════════════════════════════════════════════

// idSet - множество ID с сохранением порядка добавления.
type idSet struct {
	order []ID
	index map[ID]struct{}
}

func newIDSet(ids ...ID) idSet {
	s := idSet{index: make(map[ID]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

// add добавляет id, если его ещё нет. Возвращает true, если множество выросло.
func (s *idSet) add(id ID) bool {
	if s.index == nil {
		s.index = make(map[ID]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// remove удаляет id с сохранением порядка остальных. Возвращает true, если id был.
func (s *idSet) remove(id ID) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s idSet) has(id ID) bool {
	_, ok := s.index[id]
	return ok
}

func (s idSet) len() int {
	return len(s.index)
}

func (s idSet) list() []ID {
	return append([]ID(nil), s.order...)
}

func (s idSet) clone() idSet {
	return newIDSet(s.order...)
}

// Ledger - книга лайков одного профиля.
// Нулевое значение пригодно к использованию.
type Ledger struct {
	liked   idSet
	likedBy idSet
	matched idSet

	likedCount   int
	likedByCount int
	matchedCount int
}

// NewLedger возвращает пустую книгу лайков.
func NewLedger() Ledger {
	return Ledger{
		liked:   newIDSet(),
		likedBy: newIDSet(),
		matched: newIDSet(),
	}
}

// RestoreLedger восстанавливает книгу из хранилища.
// Счётчики берутся как есть; расхождение с множествами чинится при следующем RecordLike
// или явном вызове RecomputeCounters.
func RestoreLedger(liked, likedBy, matched []ID, likedCount, likedByCount, matchedCount int) Ledger {
	return Ledger{
		liked:        newIDSet(liked...),
		likedBy:      newIDSet(likedBy...),
		matched:      newIDSet(matched...),
		likedCount:   likedCount,
		likedByCount: likedByCount,
		matchedCount: matchedCount,
	}
}

// HasLiked - лайкнул ли владелец книги профиль id.
func (l Ledger) HasLiked(id ID) bool { return l.liked.has(id) }

// IsLikedBy - лайкнул ли профиль id владельца книги.
func (l Ledger) IsLikedBy(id ID) bool { return l.likedBy.has(id) }

// IsMatchedWith - есть ли мэтч с профилем id.
func (l Ledger) IsMatchedWith(id ID) bool { return l.matched.has(id) }

// LikedIDs возвращает исходящие лайки в порядке добавления.
func (l Ledger) LikedIDs() []ID { return l.liked.list() }

// LikedByIDs возвращает входящие лайки в порядке добавления.
func (l Ledger) LikedByIDs() []ID { return l.likedBy.list() }

// MatchedIDs возвращает мэтчи в порядке появления.
func (l Ledger) MatchedIDs() []ID { return l.matched.list() }

// LikedCount - денормализованный счётчик исходящих лайков.
func (l Ledger) LikedCount() int { return l.likedCount }

// LikedByCount - денормализованный счётчик входящих лайков.
func (l Ledger) LikedByCount() int { return l.likedByCount }

// MatchedCount - денормализованный счётчик мэтчей.
func (l Ledger) MatchedCount() int { return l.matchedCount }

// Clone возвращает независимую копию.
func (l Ledger) Clone() Ledger {
	return Ledger{
		liked:        l.liked.clone(),
		likedBy:      l.likedBy.clone(),
		matched:      l.matched.clone(),
		likedCount:   l.likedCount,
		likedByCount: l.likedByCount,
		matchedCount: l.matchedCount,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PAIR RELATIONS
// Связь между двумя профилями живая, только если записаны обе половины.
// ID - это Telegram ID, поэтому после удаления и повторного /start
// у другого пользователя могут остаться ссылки на прежнюю анкету с тем же ID.
// Такие полусвязи не считаются ни лайком, ни мэтчем.
// ══════════════════════════════════════════════════════════════════════════════

// Likes - лайкнул ли a профиль b (a.liked содержит b и b.likedBy содержит a).
func Likes(a, b *Profile) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Ledger.liked.has(b.ID) && b.Ledger.likedBy.has(a.ID)
}

// Matched - есть ли мэтч между a и b с обеих сторон.
func Matched(a, b *Profile) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Ledger.matched.has(b.ID) && b.Ledger.matched.has(a.ID)
}

// scrubStale удаляет полусвязи между a и b. Возвращает true, если что-то удалено.
func scrubStale(a, b *Profile) bool {
	scrubbed := false
	drop := func(owner *idSet, id ID) {
		if owner.remove(id) {
			scrubbed = true
		}
	}

	if a.Ledger.liked.has(b.ID) != b.Ledger.likedBy.has(a.ID) {
		drop(&a.Ledger.liked, b.ID)
		drop(&b.Ledger.likedBy, a.ID)
	}
	if b.Ledger.liked.has(a.ID) != a.Ledger.likedBy.has(b.ID) {
		drop(&b.Ledger.liked, a.ID)
		drop(&a.Ledger.likedBy, b.ID)
	}
	if a.Ledger.matched.has(b.ID) != b.Ledger.matched.has(a.ID) {
		drop(&a.Ledger.matched, b.ID)
		drop(&b.Ledger.matched, a.ID)
	}
	return scrubbed
}

// Counter - имя денормализованного счётчика.
type Counter string

const (
	CounterLiked   Counter = "liked"
	CounterLikedBy Counter = "liked_by"
	CounterMatched Counter = "matched"
)

// CounterDrift описывает расхождение счётчика с размером множества.
// Это ошибка программы: счётчик чинится, расхождение логируется.
type CounterDrift struct {
	ProfileID ID
	Counter   Counter
	Stored    int
	Actual    int
}

// RecomputeCounters выставляет счётчики равными размерам множеств
// и возвращает найденные расхождения.
func (l *Ledger) RecomputeCounters(owner ID) []CounterDrift {
	var drift []CounterDrift
	fix := func(name Counter, stored *int, actual int) {
		if *stored != actual {
			drift = append(drift, CounterDrift{ProfileID: owner, Counter: name, Stored: *stored, Actual: actual})
			*stored = actual
		}
	}
	fix(CounterLiked, &l.likedCount, l.liked.len())
	fix(CounterLikedBy, &l.likedByCount, l.likedBy.len())
	fix(CounterMatched, &l.matchedCount, l.matched.len())
	return drift
}

// sync пересчитывает счётчики после собственной мутации. Расхождения тут нет по построению.
func (l *Ledger) sync() {
	l.likedCount = l.liked.len()
	l.likedByCount = l.likedBy.len()
	l.matchedCount = l.matched.len()
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LIKE
// ══════════════════════════════════════════════════════════════════════════════

// LikeResult - итог лайка.
type LikeResult string

const (
	// ResultLiked - лайк записан, взаимности пока нет.
	ResultLiked LikeResult = "liked"
	// ResultMatched - лайк взаимный.
	ResultMatched LikeResult = "matched"
)

// LikeOutcome - результат RecordLike.
type LikeOutcome struct {
	Result LikeResult

	// FirstLike - лайк записан впервые (множество liked выросло).
	FirstLike bool

	// NewMatch - мэтч образовался именно этим вызовом.
	NewMatch bool

	// Drift - расхождения счётчиков, найденные и исправленные до мутации.
	Drift []CounterDrift

	// Scrubbed - между профилями были полусвязи от удалённой анкеты, они удалены.
	Scrubbed bool
}

// RecordLike записывает лайк viewer -> target в книги обоих профилей.
//
// Перед записью полусвязи между этими двумя профилями удаляются, поэтому
// лайк, отданный удалённой анкете с тем же ID, не превращается в мэтч.
//
// Вызов идемпотентен: повторный лайк ничего не добавляет, но условие мэтча
// проверяется заново, поэтому повтор может вернуть ResultMatched с NewMatch=false.
// Вызывающий код обязан держать блокировку (или транзакцию) на оба профиля.
func RecordLike(viewer, target *Profile) (LikeOutcome, error) {
	if viewer == nil || target == nil {
		return LikeOutcome{}, ErrUnknownUser
	}
	if viewer.ID == target.ID {
		return LikeOutcome{}, ErrSelfLike
	}

	var out LikeOutcome
	out.Drift = append(out.Drift, viewer.Ledger.RecomputeCounters(viewer.ID)...)
	out.Drift = append(out.Drift, target.Ledger.RecomputeCounters(target.ID)...)

	out.Scrubbed = scrubStale(viewer, target)

	out.FirstLike = viewer.Ledger.liked.add(target.ID)
	target.Ledger.likedBy.add(viewer.ID)

	out.Result = ResultLiked
	if Likes(target, viewer) {
		grewViewer := viewer.Ledger.matched.add(target.ID)
		grewTarget := target.Ledger.matched.add(viewer.ID)
		out.NewMatch = grewViewer || grewTarget
		out.Result = ResultMatched
	}

	viewer.Ledger.sync()
	target.Ledger.sync()
	return out, nil
}
