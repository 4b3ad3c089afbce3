package admin

// Transaction оптимистичное обновление в три явных шага: снимок состояния
// уже сделан вызывающим, Apply применяет изменение локально, Remote
// подтверждает его на сервере, Rollback возвращает снимок при отказе.
type Transaction struct {
	Apply    func()
	Remote   func() error
	Rollback func()
}

// Run выполняет обновление; при ошибке сервера локальное изменение
// откатывается и ошибка возвращается вызывающему
func (t Transaction) Run() error {
	t.Apply()
	if err := t.Remote(); err != nil {
		t.Rollback()
		return err
	}
	return nil
}
