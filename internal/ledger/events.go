package ledger

// Имена коллекций, фигурирующие в событиях изменения состояния.
const (
	CollectionProducts = "products"
	CollectionWorkers  = "workers"
	CollectionProfile  = "profile"
	CollectionOrders   = "orders"
	CollectionFunding  = "funding_requests"
)

// Event описывает факт изменения коллекции. Для заказов заполняется OrderID.
type Event struct {
	Collection string
	OrderID    int64
}

// Subscribe возвращает канал событий обо всех мутациях состояния и функцию
// отписки. События доставляются без блокировки писателя: если подписчик не
// успевает читать, события для него теряются — наблюдатель всегда может
// перечитать состояние целиком.
func (l *Ledger) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	l.subMu.Lock()
	l.subs[ch] = struct{}{}
	l.subMu.Unlock()

	cancel := func() {
		l.subMu.Lock()
		if _, ok := l.subs[ch]; ok {
			delete(l.subs, ch)
			close(ch)
		}
		l.subMu.Unlock()
	}

	return ch, cancel
}

func (l *Ledger) publish(e Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
